package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

func Login(errMsg, csrfToken string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<div class="login"><h2>Admin sign in</h2>`)
		if errMsg != "" {
			hw.raw(`<p class="error">`)
			hw.text(errMsg)
			hw.raw(`</p>`)
		}
		hw.raw(`<form method="post" action="/admin/login">`)
		csrfField(hw, csrfToken)
		hw.raw(`<label for="password">Password</label>`)
		hw.raw(`<input id="password" type="password" name="password" autocomplete="current-password" required autofocus>`)
		hw.raw(`<button type="submit">Sign in</button></form></div>`)
		return hw.err
	})
	return layout("Sign in", nil, body)
}
