package esaj

import (
	"time"

	"juris-robot/lib/browser"
)

// Page is the portal-facing browser surface the scraper drives. One Page
// maps to one authenticated session; nothing else may touch it while a
// run is in flight. Implemented by lib/browser, faked in tests.
//
// Bounded operations return browser.ErrTimeout when the bound elapses so
// the scraper can apply the right scope to the failure.
type Page interface {
	Navigate(url string, within time.Duration) error
	WaitVisible(sel string, within time.Duration) error
	Visible(sel string, within time.Duration) bool
	Click(sel string, within time.Duration) error
	ClickText(text string, within time.Duration) error
	TypeSlow(sel, text string) error
	Fill(sel, text string, within time.Duration) error
	SelectOption(sel, value string, within time.Duration) error
	TextAfter(labelText string, within time.Duration) (string, error)
	HTML(sel string, within time.Duration) (string, error)
	Content() (string, error)
	Back() error
	Count(sel string, within time.Duration) (int, error)
	WaitURLContains(substr string, within time.Duration) error
	OpenFolder(clickSel string, within time.Duration) (Folder, error)
	Pause(min, max time.Duration)
}

// Folder is the secondary browsing context holding a case's digital
// document folder. Always closed by the scraper on every exit path.
type Folder interface {
	ClickText(fragment string, within time.Duration) error
	ClickInFrame(frameSel, innerSel string, within time.Duration) error
	AwaitDownload(within time.Duration) (string, error)
	Close()
}

// NewPage adapts a browser session to the scraper's Page surface.
func NewPage(session *browser.Session) Page {
	return browserPage{session: session}
}

type browserPage struct {
	session *browser.Session
}

func (p browserPage) Navigate(url string, within time.Duration) error {
	return p.session.Navigate(url, within)
}

func (p browserPage) WaitVisible(sel string, within time.Duration) error {
	return p.session.WaitVisible(sel, within)
}

func (p browserPage) Visible(sel string, within time.Duration) bool {
	return p.session.Visible(sel, within)
}

func (p browserPage) Click(sel string, within time.Duration) error {
	return p.session.Click(sel, within)
}

func (p browserPage) ClickText(text string, within time.Duration) error {
	return p.session.ClickText(text, within)
}

func (p browserPage) TypeSlow(sel, text string) error {
	return p.session.TypeSlow(sel, text)
}

func (p browserPage) Fill(sel, text string, within time.Duration) error {
	return p.session.Fill(sel, text, within)
}

func (p browserPage) SelectOption(sel, value string, within time.Duration) error {
	return p.session.SelectOption(sel, value, within)
}

func (p browserPage) TextAfter(labelText string, within time.Duration) (string, error) {
	return p.session.TextAfter(labelText, within)
}

func (p browserPage) HTML(sel string, within time.Duration) (string, error) {
	return p.session.HTML(sel, within)
}

func (p browserPage) Content() (string, error) {
	return p.session.Content()
}

func (p browserPage) Back() error {
	return p.session.Back()
}

func (p browserPage) Count(sel string, within time.Duration) (int, error) {
	return p.session.Count(sel, within)
}

func (p browserPage) WaitURLContains(substr string, within time.Duration) error {
	return p.session.WaitURLContains(substr, within)
}

func (p browserPage) OpenFolder(clickSel string, within time.Duration) (Folder, error) {
	tab, err := p.session.ExpectTab(within, func() error {
		return p.session.Click(clickSel, 10*time.Second)
	})
	if err != nil {
		return nil, err
	}
	return browserFolder{tab: tab}, nil
}

func (p browserPage) Pause(min, max time.Duration) {
	p.session.PauseBetween(min, max)
}

type browserFolder struct {
	tab *browser.Tab
}

func (f browserFolder) ClickText(fragment string, within time.Duration) error {
	return f.tab.ClickText(fragment, within)
}

func (f browserFolder) ClickInFrame(frameSel, innerSel string, within time.Duration) error {
	return f.tab.ClickInFrame(frameSel, innerSel, within)
}

func (f browserFolder) AwaitDownload(within time.Duration) (string, error) {
	return f.tab.AwaitDownload(within)
}

func (f browserFolder) Close() {
	f.tab.Close()
}
