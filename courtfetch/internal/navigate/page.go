package navigate

import (
	"context"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/captcha"
)

// Page is everything the sequencer does to the browser tab. *browser.Tab
// satisfies it.
type Page interface {
	captcha.Page

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	RemoveElements(ctx context.Context, selector string) (int, error)

	Click(ctx context.Context, selector string) error
	ClickScript(ctx context.Context, selector string) error
	Select(ctx context.Context, selector, value string) error
	SelectScript(ctx context.Context, selector, value string) error
	Fill(ctx context.Context, selector, value string) error
	FillScript(ctx context.Context, selector, value string) error

	Visible(ctx context.Context, selector string) (bool, error)
	WaitText(ctx context.Context, text string, timeout time.Duration) error

	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}
