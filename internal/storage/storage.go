package storage

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidName = errors.New("invalid object name")

// validName rejects anything that could escape the target directory. Object
// names are generated from tokens and ids, so this never trips in practice.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}

func publicURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(name)
}
