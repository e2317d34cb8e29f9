// Package browser adapts a rod-driven Chrome tab to the collector's Session.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/roverwatch/internal/collector"
	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Session is one Chrome tab. It implements collector.Session.
type Session struct {
	page              *rod.Page
	navigationTimeout time.Duration
	clickTimeout      time.Duration
}

var _ collector.Session = (*Session)(nil)

// NewSession wraps an open page.
func NewSession(page *rod.Page, navigationTimeout, clickTimeout time.Duration) *Session {
	return &Session{
		page:              page,
		navigationTimeout: navigationTimeout,
		clickTimeout:      clickTimeout,
	}
}

// Navigate opens url and waits for the page load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.navigationTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return mapError(ctx, err)
	}
	if err := p.WaitLoad(); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

// EnterFrame waits for the iframe matched by loc and returns its document.
func (s *Session) EnterFrame(ctx context.Context, loc config.Locator, timeout time.Duration) (collector.Frame, error) {
	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	el, err := waitElement(p, loc)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	framePage, err := el.Frame()
	if err != nil {
		return nil, mapError(ctx, err)
	}
	if err := framePage.WaitLoad(); err != nil {
		return nil, mapError(ctx, err)
	}
	return &Frame{page: framePage, clickTimeout: s.clickTimeout}, nil
}

// Frame is the document of the embedded map. Every call rebinds the
// caller's context, so the timeout used to find the frame does not leak into
// later lookups.
type Frame struct {
	page         *rod.Page
	clickTimeout time.Duration
}

var _ collector.Frame = (*Frame)(nil)

func (f *Frame) WaitPresent(ctx context.Context, loc config.Locator, timeout time.Duration) (collector.Element, error) {
	p := f.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	el, err := waitElement(p, loc)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return f.wrap(el), nil
}

func (f *Frame) Find(ctx context.Context, loc config.Locator) (collector.Element, error) {
	p := f.page.Context(ctx)

	var (
		found bool
		el    *rod.Element
		err   error
	)
	switch loc.By {
	case config.ByXPath:
		found, el, err = p.HasX(loc.Value)
	default:
		found, el, err = p.Has(cssSelector(loc))
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", loc, collector.ErrNotFound)
	}
	return f.wrap(el), nil
}

func (f *Frame) FindAll(ctx context.Context, loc config.Locator) ([]collector.Element, error) {
	p := f.page.Context(ctx)

	var (
		els rod.Elements
		err error
	)
	switch loc.By {
	case config.ByXPath:
		els, err = p.ElementsX(loc.Value)
	default:
		els, err = p.Elements(cssSelector(loc))
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}

	out := make([]collector.Element, 0, len(els))
	for _, el := range els {
		out = append(out, f.wrap(el))
	}
	return out, nil
}

func (f *Frame) wrap(el *rod.Element) *Element {
	return &Element{el: el, clickTimeout: f.clickTimeout}
}

// Element is one node of the map document.
type Element struct {
	el           *rod.Element
	clickTimeout time.Duration
}

var _ collector.Element = (*Element)(nil)

func (e *Element) Visible(ctx context.Context) (bool, error) {
	visible, err := e.el.Context(ctx).Visible()
	if err != nil {
		return false, mapError(ctx, err)
	}
	return visible, nil
}

// WaitClickable waits until the element is visible and enabled.
func (e *Element) WaitClickable(ctx context.Context, timeout time.Duration) error {
	el := e.el.Context(ctx).Timeout(timeout)
	defer el.CancelTimeout()

	if err := el.WaitVisible(); err != nil {
		return mapError(ctx, err)
	}
	if err := el.WaitEnabled(); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

// Click left-clicks the element once at the point found interactable. A
// click that would land on an overlapping element is reported as
// collector.ErrClickIntercepted. Unlike rod's Element.Click it never waits
// for a covered element to clear.
func (e *Element) Click(ctx context.Context) error {
	el := e.el.Context(ctx).Timeout(e.clickTimeout)
	defer el.CancelTimeout()

	if err := el.ScrollIntoView(); err != nil {
		return mapError(ctx, err)
	}
	pt, err := el.Interactable()
	if err != nil {
		return mapError(ctx, err)
	}

	mouse := el.Page().Context(el.GetContext()).Mouse
	if err := mouse.MoveTo(*pt); err != nil {
		return mapError(ctx, err)
	}
	if err := mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", mapError(ctx, err)
	}
	return text, nil
}

func waitElement(p *rod.Page, loc config.Locator) (*rod.Element, error) {
	if loc.By == config.ByXPath {
		return p.ElementX(loc.Value)
	}
	return p.Element(cssSelector(loc))
}

// cssSelector converts a css or id locator to a CSS selector.
func cssSelector(loc config.Locator) string {
	if loc.By == config.ByID {
		return fmt.Sprintf(`[id=%q]`, loc.Value)
	}
	return loc.Value
}

// mapError converts rod's deadline, not-found and covered errors into the
// collector's sentinels. Errors caused by the caller's own context are
// returned unchanged.
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", collector.ErrTimeout, err)
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", collector.ErrNotFound, err)
	}
	var covered *rod.CoveredError
	if errors.As(err, &covered) {
		return fmt.Errorf("%w: %v", collector.ErrClickIntercepted, err)
	}
	return err
}
