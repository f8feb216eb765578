// Package layout holds the page shell shared by every page.
package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/mcoot/guessgame/internal/model"
)

// FlashMessage is a one-shot notice shown on the next page
type FlashMessage struct {
	Type    string // success, error, info
	Message string
}

// PageData is common to every page
type PageData struct {
	Title    string
	Identity *model.Identity
	Flash    *FlashMessage
}

const styles = `body{font-family:sans-serif;max-width:40rem;margin:2rem auto;padding:0 1rem}
nav{display:flex;justify-content:space-between;align-items:center}
.flash{padding:.5rem;border-radius:4px}.flash-success{background:#dfd}.flash-error{background:#fdd}.flash-info{background:#ddf}
#guess-msg{font-weight:bold;min-height:1.5em}
table{border-collapse:collapse}td,th{padding:.25rem .75rem;text-align:left}`

// Base wraps body in the document shell
func Base(data PageData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`+
			templ.EscapeString(data.Title)+` | Guess the Number</title><style>`+styles+`</style></head><body>`); err != nil {
			return err
		}
		if err := nav(data.Identity).Render(ctx, w); err != nil {
			return err
		}
		if data.Flash != nil {
			if _, err := io.WriteString(w, `<p class="flash flash-`+templ.EscapeString(data.Flash.Type)+`">`+
				templ.EscapeString(data.Flash.Message)+`</p>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `<main>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func nav(identity *model.Identity) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := `<nav><h1><a href="/">Guess the Number</a></h1>`
		if identity != nil {
			html += `<form method="post" action="/auth/logout"><span id="nickname">` +
				templ.EscapeString(identity.Nickname) +
				`</span> <button type="submit" id="logout">Log out</button></form>`
		}
		_, err := io.WriteString(w, html+`</nav>`)
		return err
	})
}
