package crawler

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/foodwatch-kr/regintel/internal/ingest"
)

// fdaDateLayout is how FDA pages print dates: "January 2, 2006".
const fdaDateLayout = "January 2, 2006"

// isoDateLayout is the storage format for dates in metadata.
const isoDateLayout = "2006-01-02"

// detailPage holds everything parsed from one announcement page.
type detailPage struct {
	Title            string
	ProductType      string
	AnnouncementDate string // ISO, from "Company Announcement Date"
	PublishDate      string // ISO, from "FDA Publish Date"
	Announcement     string // company announcement paragraphs
}

// isFoodAndBeverages applies the category gate. The Product Type entry on
// food recalls reads "Food & Beverages"; drugs and devices read otherwise.
func (d *detailPage) isFoodAndBeverages() bool {
	return strings.Contains(d.ProductType, "Food & Beverages")
}

// toRecord converts the parsed page into an ingest record.
func (d *detailPage) toRecord(url string) ingest.Record {
	return ingest.Record{
		DocumentType:  "recall",
		Category:      strings.TrimSpace(d.ProductType),
		Title:         d.Title,
		URL:           url,
		EffectiveDate: d.AnnouncementDate,
		LastUpdated:   d.PublishDate,
	}
}

// fetchDetail visits an announcement page and parses its structure.
func (c *Crawler) fetchDetail(detailURL string) (*detailPage, error) {
	collector, err := c.newCollector()
	if err != nil {
		return nil, err
	}

	var (
		detail   detailPage
		visitErr error
	)

	collector.OnHTML("body", func(e *colly.HTMLElement) {
		parseDetail(e.DOM, &detail)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := collector.Visit(detailURL); err != nil {
		return nil, err
	}
	collector.Wait()

	if visitErr != nil {
		return nil, visitErr
	}
	if detail.Title == "" {
		return nil, fmt.Errorf("no title found at %s", detailURL)
	}
	return &detail, nil
}

// parseDetail extracts the title, summary definition list, and company
// announcement body from a recall page.
func parseDetail(body *goquery.Selection, detail *detailPage) {
	detail.Title = strings.TrimSpace(body.Find("h1").First().Text())

	// The summary block is a definition list of dt/dd pairs.
	body.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(dt.Text()), ":"))
		value := strings.TrimSpace(dt.NextFiltered("dd").Text())

		switch label {
		case "Product Type":
			// Multi-line product types collapse to a single line.
			detail.ProductType = strings.Join(strings.Fields(value), " ")
		case "Company Announcement Date":
			detail.AnnouncementDate = toISODate(value)
		case "FDA Publish Date":
			detail.PublishDate = toISODate(value)
		}
	})

	detail.Announcement = announcementText(body)
}

// announcementText collects the paragraphs after the "Company Announcement"
// heading, stopping at the first horizontal rule. The hr separates the
// announcement from the product photos section.
func announcementText(body *goquery.Selection) string {
	var heading *goquery.Selection
	body.Find("h2").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(h.Text(), "Company Announcement") {
			heading = h
			return false
		}
		return true
	})
	if heading == nil {
		return ""
	}

	var paragraphs []string
	for sib := heading.Next(); sib.Length() > 0; sib = sib.Next() {
		if goquery.NodeName(sib) == "hr" {
			break
		}
		if goquery.NodeName(sib) == "p" {
			if text := strings.TrimSpace(sib.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// toISODate converts "January 2, 2006" to "2006-01-02".
// Unparseable input is returned trimmed, never discarded.
func toISODate(text string) string {
	text = strings.TrimSpace(text)
	t, err := time.Parse(fdaDateLayout, text)
	if err != nil {
		return text
	}
	return t.Format(isoDateLayout)
}

// parseListingDate parses the date cell of a listing row.
func parseListingDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(fdaDateLayout, text); err == nil {
		return t, nil
	}
	// Some listing renderings use the compact form "01/02/2006".
	if t, err := time.Parse("01/02/2006", text); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", text)
}
