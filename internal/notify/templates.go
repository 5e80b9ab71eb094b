package notify

import (
	"fmt"
	"strings"
	"text/template"
)

var subjects = map[Kind]string{
	KindReservationReceived:  "Recebemos sua reserva: %s",
	KindReservationConfirmed: "Reserva confirmada: %s",
	KindPurchasePaid:         "Pagamento confirmado: %s",
	KindTicketsIssued:        "Seus ingressos: %s",
}

var bodies = template.Must(template.New("mail").Funcs(template.FuncMap{
	"brl": func(cents int64) string {
		return fmt.Sprintf("R$ %d,%02d", cents/100, cents%100)
	},
}).Parse(`
{{- define "header" }}Olá, {{ .BuyerName }}!

Show: {{ .ShowName }}
Código do pedido: {{ .Token }}
{{ end -}}

{{- define "reservation_received" }}{{ template "header" . }}
Recebemos seu pedido de reserva. Avisaremos assim que ele for confirmado.

Acompanhe em: {{ .StatusURL }}
{{ end -}}

{{- define "reservation_confirmed" }}{{ template "header" . }}
Sua reserva está confirmada. Até lá!

Detalhes: {{ .StatusURL }}
{{ end -}}

{{- define "purchase_paid" }}{{ template "header" . }}
Recebemos seu pagamento de {{ brl .TotalCents }}. Seus ingressos estão sendo gerados.

Acompanhe em: {{ .StatusURL }}
{{ end -}}

{{- define "tickets_issued" }}{{ template "header" . }}
Seus ingressos estão prontos.
{{ range .Links }}
- {{ .Label }}: {{ .URL }}
{{- end }}

Apresente o QR Code do ingresso na entrada.
{{ end -}}
`))

func Render(n Notification) (Mail, error) {
	subject, ok := subjects[n.Kind]
	if !ok {
		return Mail{}, fmt.Errorf("no template for notification kind %q", n.Kind)
	}

	var body strings.Builder
	if err := bodies.ExecuteTemplate(&body, string(n.Kind), n); err != nil {
		return Mail{}, fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return Mail{
		To:      n.BuyerEmail,
		Subject: fmt.Sprintf(subject, n.ShowName),
		Body:    body.String(),
	}, nil
}
