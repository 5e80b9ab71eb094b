package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/showticket/internal/artifacts"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/metrics"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

// errNothingToDo rolls back a fulfillment transaction that decided to skip.
var errNothingToDo = errors.New("nothing to do")

type Fulfillment struct {
	store    repository.Store
	renderer ArtifactRenderer
	objects  ObjectStore
	notifier notify.Notifier
	links    Links
	now      Clock
}

func NewFulfillment(store repository.Store, renderer ArtifactRenderer, objects ObjectStore, notifier notify.Notifier, links Links) *Fulfillment {
	return &Fulfillment{
		store:    store,
		renderer: renderer,
		objects:  objects,
		notifier: notifier,
		links:    links,
		now:      time.Now,
	}
}

func ticketObjectName(purchaseToken string, ticketID uuid.UUID, ext string) string {
	return fmt.Sprintf("%s-ticket-%s.%s", purchaseToken, ticketID, ext)
}

func bundleObjectName(purchaseToken, ext string) string {
	return fmt.Sprintf("%s-tickets.%s", purchaseToken, ext)
}

// Run issues the ticket set of a paid purchase. It holds the purchase row lock
// for the whole run and re-checks fulfillment under it, so concurrent runs
// produce one set. Any render or upload error rolls the run back entirely.
func (f *Fulfillment) Run(ctx context.Context, purchaseID uuid.UUID) Outcome {
	started := f.now()
	logger := log.FromContext(ctx).WithField("purchase_id", purchaseID)

	var (
		outcome  Outcome
		purchase *models.Purchase
		payment  *models.Payment
		tickets  []models.Ticket
	)
	err := f.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		purchase = p
		if p.Status != models.PurchasePaid {
			outcome = noop("purchase is not paid")
			return errNothingToDo
		}

		payments, err := tx.PaymentsForPurchase(ctx, p.ID)
		if err != nil {
			return err
		}
		paid, ok := settledPayment(payments)
		if !ok {
			outcome = noop("purchase has no settled payment")
			return errNothingToDo
		}
		payment = paid

		fulfilled, err := IsFulfilled(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if fulfilled {
			outcome = noop("already fulfilled")
			return errNothingToDo
		}

		tickets, err = f.issue(ctx, tx, p, paid)
		if err != nil {
			return err
		}
		outcome = applied(fmt.Sprintf("issued %d tickets", len(tickets)))
		return nil
	})

	switch {
	case errors.Is(err, errNothingToDo):
		logger.WithField("reason", outcome.Reason).Debug("Fulfillment skipped")
		return outcome
	case errors.Is(err, repository.ErrNotFound):
		return noop("purchase not found")
	case err != nil:
		logger.WithError(err).Error("Fulfillment failed")
		f.recordFailure(ctx, purchaseID, err)
		metrics.FulfillmentFinished(string(TransientFailure), f.now().Sub(started))
		return transient("fulfillment", err)
	}

	metrics.FulfillmentFinished(string(Applied), f.now().Sub(started))
	logger.WithFields(logrus.Fields{"tickets": len(tickets), "bundle_pdf": payment.BundlePDFURL}).Info("Tickets issued")

	links := []notify.Link{
		{Label: "Todos os ingressos (PDF)", URL: payment.BundlePDFURL},
		{Label: "Todos os arquivos (ZIP)", URL: payment.BundleZIPURL},
	}
	for _, t := range tickets {
		links = append(links, notify.Link{Label: t.PersonName, URL: t.PDFURL})
	}
	sendNotification(ctx, f.notifier, buildNotification(notify.KindTicketsIssued, purchase, f.links, f.now(), links...))
	return outcome
}

func (f *Fulfillment) issue(ctx context.Context, tx repository.Store, purchase *models.Purchase, payment *models.Payment) ([]models.Ticket, error) {
	// Rows left without artifacts by an older run are reused in order.
	existing, err := tx.TicketsForPurchase(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}

	attendees := ExpandAttendees(purchase.BuyerName, purchase.GuestsText)
	now := f.now()

	tickets := make([]models.Ticket, 0, len(attendees))
	pngs := make([][]byte, 0, len(attendees))
	files := make([]artifacts.File, 0, 2*len(attendees))

	for i, attendee := range attendees {
		ticket := models.Ticket{
			PurchaseID: purchase.ID,
			Token:      shortuuid.New(),
		}
		if i < len(existing) {
			ticket = existing[i]
		}
		ticket.EventID = purchase.EventID
		ticket.ShowName = purchase.ShowName
		ticket.PersonName = attendee.Name
		ticket.PersonRole = attendee.Role
		ticket.Sequence = i + 1
		ticket.Status = models.TicketIssued
		ticket.IssuedAt = now

		if i >= len(existing) {
			if err := tx.CreateTicket(ctx, &ticket); err != nil {
				return nil, fmt.Errorf("create ticket %d: %w", i+1, err)
			}
		}

		png, err := f.renderer.RenderTicket(ctx, artifacts.TicketArt{
			ShowName:   purchase.ShowName,
			PersonName: attendee.Name,
			Sequence:   i + 1,
			Total:      len(attendees),
			VerifyURL:  f.links.Ticket(ticket.Token),
		})
		if err != nil {
			return nil, fmt.Errorf("render ticket %d: %w", i+1, err)
		}
		pdf, err := f.renderer.TicketPDF(png)
		if err != nil {
			return nil, fmt.Errorf("ticket %d pdf: %w", i+1, err)
		}

		pngName := ticketObjectName(purchase.Token, ticket.ID, "png")
		pdfName := ticketObjectName(purchase.Token, ticket.ID, "pdf")
		if ticket.PNGURL, err = f.objects.Put(ctx, pngName, png, "image/png"); err != nil {
			return nil, fmt.Errorf("upload %s: %w", pngName, err)
		}
		if ticket.PDFURL, err = f.objects.Put(ctx, pdfName, pdf, "application/pdf"); err != nil {
			return nil, fmt.Errorf("upload %s: %w", pdfName, err)
		}
		if err := tx.SaveTicket(ctx, &ticket); err != nil {
			return nil, err
		}

		tickets = append(tickets, ticket)
		pngs = append(pngs, png)
		files = append(files,
			artifacts.File{Name: fmt.Sprintf("ingresso-%02d.png", i+1), Data: png},
			artifacts.File{Name: fmt.Sprintf("ingresso-%02d.pdf", i+1), Data: pdf},
		)
	}

	bundle, err := f.renderer.BundlePDF(pngs)
	if err != nil {
		return nil, fmt.Errorf("bundle pdf: %w", err)
	}
	archive, err := f.renderer.Archive(files)
	if err != nil {
		return nil, fmt.Errorf("bundle zip: %w", err)
	}
	if payment.BundlePDFURL, err = f.objects.Put(ctx, bundleObjectName(purchase.Token, "pdf"), bundle, "application/pdf"); err != nil {
		return nil, fmt.Errorf("upload bundle pdf: %w", err)
	}
	if payment.BundleZIPURL, err = f.objects.Put(ctx, bundleObjectName(purchase.Token, "zip"), archive, "application/zip"); err != nil {
		return nil, fmt.Errorf("upload bundle zip: %w", err)
	}
	payment.FulfilledAt = &now
	payment.FulfillmentLastError = ""
	if err := tx.SavePayment(ctx, payment); err != nil {
		return nil, err
	}
	return tickets, nil
}

// recordFailure stores the error text on the settled payment, in its own
// transaction since the run's was rolled back.
func (f *Fulfillment) recordFailure(ctx context.Context, purchaseID uuid.UUID, cause error) {
	err := f.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.LockPurchase(ctx, purchaseID); err != nil {
			return err
		}
		payments, err := tx.PaymentsForPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		paid, ok := settledPayment(payments)
		if !ok {
			return nil
		}
		paid.FulfillmentLastError = cause.Error()
		return tx.SavePayment(ctx, paid)
	})
	if err != nil {
		log.FromContext(ctx).WithError(err).WithField("purchase_id", purchaseID).Error("Could not record fulfillment error")
	}
}
