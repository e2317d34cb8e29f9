package collector

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// fakeMarker describes one waypoint marker of the fixture map.
type fakeMarker struct {
	sol, lngLat, eastNorth, relative string

	hidden       bool
	intercept    bool
	notClickable bool
	stuck        bool
}

type fakeFixture struct {
	markers []fakeMarker
	current fakeMarker
	title   string
	info    string
	noFrame bool
}

func defaultFixture() fakeFixture {
	return fakeFixture{
		markers: []fakeMarker{
			{sol: "3401", lngLat: "137.3901, -4.7101", eastNorth: "1001.25, -20012.5", relative: "0.00, 0.00"},
			{sol: "3403", lngLat: "137.3902, -4.7102", eastNorth: "1002.25, -20022.5", relative: "1.00, -10.00", hidden: true},
			{sol: "3405", lngLat: "137.3903, -4.7103", eastNorth: "1003.25, -20032.5", relative: "2.00, -20.00"},
			{sol: "3407", lngLat: "137.3904, -4.7104", eastNorth: "1004.25, -20042.5", relative: "3.00, -30.00", intercept: true},
			{sol: "3409", lngLat: "137.3905, -4.7105", eastNorth: "1005.25, -20052.5", relative: "4.00, -40.00"},
		},
		current: fakeMarker{sol: "3412", lngLat: "137.3910, -4.7110", eastNorth: "1010.75, -20100.5", relative: "9.00, -90.00"},
		title:   "Curiosity's Location",
		info:    "Sol 3412 Mars Date\nDistance Driven 18.37 miles / 29.56 km\nElevation -4,180 m",
	}
}

func markerAttrs(m fakeMarker) string {
	return fmt.Sprintf(`data-sol=%q data-lnglat=%q data-en=%q data-rel=%q data-visible="%t" data-intercept="%t" data-clickable="%t" data-stuck="%t"`,
		m.sol, m.lngLat, m.eastNorth, m.relative, !m.hidden, m.intercept, !m.notClickable, m.stuck)
}

func (f fakeFixture) frameHTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="topBar"><span id="topBarTitle">`)
	b.WriteString(f.title)
	b.WriteString(`</span></div><div class="mainInfo">`)
	b.WriteString(f.info)
	b.WriteString(`</div><div id="mainDescPointInner"></div>`)
	b.WriteString(`<div class="mouseLngLat" data-visible="true" data-clickable="true"><p id="mouseLngLat"></p></div>`)
	b.WriteString(`<svg class="leaflet-zoom-animated">`)
	for i, m := range f.markers {
		fmt.Fprintf(&b, `<path class="waypoints leaflet-interactive" data-index="%d" %s></path>`, i+1, markerAttrs(m))
	}
	b.WriteString(`</svg>`)
	fmt.Fprintf(&b, `<img class="leaflet-marker-icon leaflet-zoom-animated leaflet-interactive" src="rover.png" %s>`, markerAttrs(f.current))
	b.WriteString(`</body></html>`)
	return b.String()
}

func (f fakeFixture) pageHTML() string {
	if f.noFrame {
		return `<html><body><div id="map-placeholder"></div></body></html>`
	}
	return `<html><body><h1>Where is the rover?</h1><iframe src="map.html"></iframe></body></html>`
}

func testLocators() config.Locators {
	return config.Locators{
		Frame:           config.Locator{By: config.ByCSS, Value: `iframe[src="map.html"]`},
		Waypoint:        config.Locator{By: config.ByCSS, Value: "path.waypoints.leaflet-interactive"},
		ReadoutHost:     config.Locator{By: config.ByCSS, Value: "div.mouseLngLat"},
		ReadoutText:     config.Locator{By: config.ByCSS, Value: "p#mouseLngLat"},
		SolLabel:        config.Locator{By: config.ByID, Value: "mainDescPointInner"},
		Title:           config.Locator{By: config.ByID, Value: "topBarTitle"},
		Info:            config.Locator{By: config.ByCSS, Value: "div.mainInfo"},
		CurrentPosition: config.Locator{By: config.ByCSS, Value: "img.leaflet-marker-icon.leaflet-zoom-animated.leaflet-interactive"},
	}
}

func testTimeouts() config.Timeouts {
	return config.Timeouts{Frame: time.Second, Click: time.Second, Presence: time.Second}
}

// fakeMap is an in-memory stand-in for the Leaflet map. Clicking a marker
// focuses it and updates the sol label; each click on the readout host
// advances the readout through its three representations.
type fakeMap struct {
	page  *goquery.Document
	frame *goquery.Document

	navigated  []string
	focused    *goquery.Selection
	hostClicks int
	clicks     []string
}

func newFakeMap(t *testing.T, f fakeFixture) *fakeMap {
	t.Helper()
	page, err := goquery.NewDocumentFromReader(strings.NewReader(f.pageHTML()))
	require.NoError(t, err)
	frame, err := goquery.NewDocumentFromReader(strings.NewReader(f.frameHTML()))
	require.NoError(t, err)
	return &fakeMap{page: page, frame: frame}
}

func find(doc *goquery.Document, loc config.Locator) (*goquery.Selection, error) {
	switch loc.By {
	case config.ByCSS:
		return doc.Find(loc.Value), nil
	case config.ByID:
		return doc.Find("#" + loc.Value), nil
	default:
		return nil, fmt.Errorf("fake map does not support %s locators", loc.By)
	}
}

func (m *fakeMap) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.navigated = append(m.navigated, url)
	return nil
}

func (m *fakeMap) EnterFrame(ctx context.Context, loc config.Locator, _ time.Duration) (Frame, error) {
	sel, err := find(m.page, loc)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, ErrTimeout
	}
	return &fakeFrame{m: m}, nil
}

type fakeFrame struct {
	m *fakeMap
}

func (f *fakeFrame) WaitPresent(ctx context.Context, loc config.Locator, _ time.Duration) (Element, error) {
	sel, err := find(f.m.frame, loc)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, ErrTimeout
	}
	return &fakeElement{m: f.m, sel: sel.First()}, nil
}

func (f *fakeFrame) Find(ctx context.Context, loc config.Locator) (Element, error) {
	sel, err := find(f.m.frame, loc)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, ErrNotFound
	}
	return &fakeElement{m: f.m, sel: sel.First()}, nil
}

func (f *fakeFrame) FindAll(ctx context.Context, loc config.Locator) ([]Element, error) {
	sel, err := find(f.m.frame, loc)
	if err != nil {
		return nil, err
	}
	els := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		els = append(els, &fakeElement{m: f.m, sel: s})
	})
	return els, nil
}

type fakeElement struct {
	m   *fakeMap
	sel *goquery.Selection
}

func (e *fakeElement) Visible(ctx context.Context) (bool, error) {
	return e.sel.AttrOr("data-visible", "true") != "false", nil
}

func (e *fakeElement) WaitClickable(ctx context.Context, _ time.Duration) error {
	if e.sel.AttrOr("data-clickable", "true") == "false" {
		return ErrTimeout
	}
	return nil
}

func (e *fakeElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.sel.AttrOr("data-intercept", "false") == "true" {
		return fmt.Errorf("click %s: %w", e.describe(), ErrClickIntercepted)
	}
	e.m.clicks = append(e.m.clicks, e.describe())

	switch {
	case e.sel.Is("path.waypoints"), e.sel.Is("img.leaflet-marker-icon"):
		e.m.focused = e.sel
		e.m.hostClicks = 0
		e.m.frame.Find("#mainDescPointInner").SetText("Sol: " + e.sel.AttrOr("data-sol", ""))
		e.m.frame.Find("p#mouseLngLat").SetText("")
	case e.sel.Is("div.mouseLngLat"):
		e.m.hostClicks++
		e.m.frame.Find("p#mouseLngLat").SetText(e.m.readout())
	}
	return nil
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e *fakeElement) describe() string {
	if idx, ok := e.sel.Attr("data-index"); ok {
		return "marker " + idx
	}
	return goquery.NodeName(e.sel)
}

// readout returns what the readout shows after the current number of host
// clicks on the focused marker.
func (m *fakeMap) readout() string {
	if m.focused == nil {
		return ""
	}
	attrs := []string{"data-lnglat", "data-en", "data-rel"}
	phase := (m.hostClicks - 1) % len(attrs)
	if m.focused.AttrOr("data-stuck", "false") == "true" {
		phase = 0
	}
	return m.focused.AttrOr(attrs[phase], "")
}
