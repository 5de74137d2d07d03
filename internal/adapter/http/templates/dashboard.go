package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/service"
)

type DashboardData struct {
	Queue     service.QueueStatus
	Counts    map[domain.ProcessingStatus]int
	Failed    []*domain.Video
	CSRFToken string
	Notice    string
}

var dashboardStatuses = []domain.ProcessingStatus{
	domain.StatusPending,
	domain.StatusProcessing,
	domain.StatusCompleted,
	domain.StatusFailed,
}

func Dashboard(data DashboardData) templ.Component {
	header := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<form method="post" action="/admin/logout">`)
		csrfField(hw, data.CSRFToken)
		hw.raw(`<button type="submit">Sign out</button></form>`)
		return hw.err
	})

	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		if data.Notice != "" {
			hw.raw(`<p>`)
			hw.text(data.Notice)
			hw.raw(`</p>`)
		}

		hw.raw(`<h2>Queue</h2><div class="stats">`)
		stat(hw, "Queued", data.Queue.QueueLength)
		stat(hw, "Active", data.Queue.Active)
		stat(hw, "Retries waiting", data.Queue.PendingRetries)
		running := "idle"
		if data.Queue.Processing {
			running = "draining"
		}
		hw.raw(`<div class="stat"><b>`)
		hw.text(running)
		hw.raw(`</b>worker</div></div>`)

		hw.raw(`<h2>Videos</h2><div class="stats">`)
		for _, status := range dashboardStatuses {
			stat(hw, string(status), data.Counts[status])
		}
		hw.raw(`</div>`)

		hw.raw(`<h2>Failed</h2>`)
		if len(data.Failed) == 0 {
			hw.raw(`<p>No failed videos.</p>`)
			return hw.err
		}
		hw.raw(`<table><thead><tr><th>ID</th><th>Source</th><th>Error</th><th>Attempts</th><th>Updated</th><th></th></tr></thead><tbody>`)
		for _, v := range data.Failed {
			failedRow(hw, v, data.CSRFToken)
		}
		hw.raw(`</tbody></table>`)
		return hw.err
	})

	return layout("Dashboard", header, body)
}

func stat(hw *htmlWriter, label string, n int) {
	hw.raw(`<div class="stat"><b>`)
	hw.text(strconv.Itoa(n))
	hw.raw(`</b>`)
	hw.text(label)
	hw.raw(`</div>`)
}

func failedRow(hw *htmlWriter, v *domain.Video, csrfToken string) {
	hw.raw(`<tr><td>`)
	hw.text(v.ID)
	hw.raw(`</td><td>`)
	hw.text(logger.RedactURL(v.SourceURL))
	hw.raw(`</td><td class="error">`)
	hw.text(v.ErrorMessage)
	hw.raw(`</td><td>`)
	hw.text(strconv.Itoa(v.Attempts))
	hw.raw(`</td><td>`)
	hw.text(v.UpdatedAt.UTC().Format(time.DateTime))
	hw.raw(`</td><td>`)
	hw.raw(fmt.Sprintf(`<form method="post" action="/admin/videos/%s/retry">`, templ.EscapeString(url.PathEscape(v.ID))))
	csrfField(hw, csrfToken)
	hw.raw(`<button type="submit">Retry</button></form></td></tr>`)
}
