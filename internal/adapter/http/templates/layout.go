// Package templates renders the admin pages.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const stylesheet = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d2330}
header{background:#1d2330;color:#fff;padding:12px 24px;display:flex;justify-content:space-between;align-items:center}
header form{margin:0}
main{max-width:1100px;margin:24px auto;padding:0 24px}
table{width:100%;border-collapse:collapse;background:#fff;margin-bottom:24px}
th,td{text-align:left;padding:8px 12px;border-bottom:1px solid #e3e6eb;font-size:14px}
.stats{display:flex;gap:12px;margin-bottom:24px}
.stat{background:#fff;padding:12px 16px;border-radius:6px;min-width:120px}
.stat b{display:block;font-size:22px}
.error{color:#b42318}
.login{max-width:320px;margin:80px auto;background:#fff;padding:24px;border-radius:6px}
input[type=password]{width:100%;padding:8px;margin:8px 0 16px;box-sizing:border-box}
button{padding:6px 14px;cursor:pointer}
`

// htmlWriter stops writing after the first error and keeps it.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) component(ctx context.Context, c templ.Component) {
	if hw.err != nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

func layout(title string, header, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(` · reel</title><style>`)
		hw.raw(stylesheet)
		hw.raw(`</style></head><body><header><strong>reel</strong>`)
		if header != nil {
			hw.component(ctx, header)
		}
		hw.raw(`</header><main>`)
		hw.component(ctx, body)
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

func csrfField(hw *htmlWriter, token string) {
	hw.raw(`<input type="hidden" name="csrf_token" value="`)
	hw.text(token)
	hw.raw(`">`)
}
