package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/domain/cart"
)

type output struct {
	format string
	w      io.Writer
}

type cartView struct {
	ID          string                `json:"id"`
	ClientID    string                `json:"clientId"`
	Status      string                `json:"status"`
	Items       []cart.PricedLineItem `json:"items"`
	Total       string                `json:"total"`
	Revision    es.Revision           `json:"revision"`
	ConfirmedAt time.Time             `json:"confirmedAt,omitzero"`
	CanceledAt  time.Time             `json:"canceledAt,omitzero"`
}

func (o *output) json(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) opened(id string) error {
	if o.format == "json" {
		return o.json(map[string]string{"id": id})
	}
	_, err := fmt.Fprintln(o.w, id)
	return err
}

func (o *output) cart(c *cart.Cart, rev es.Revision) error {
	v := cartView{
		ID:          c.ID,
		ClientID:    c.ClientID,
		Status:      c.Status.String(),
		Items:       c.Items,
		Total:       c.TotalAmount().String(),
		Revision:    rev,
		ConfirmedAt: c.ConfirmedAt,
		CanceledAt:  c.CanceledAt,
	}
	if v.Items == nil {
		v.Items = []cart.PricedLineItem{}
	}
	if o.format == "json" {
		return o.json(v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cart:     %s\n", v.ID)
	fmt.Fprintf(&b, "client:   %s\n", v.ClientID)
	fmt.Fprintf(&b, "status:   %s\n", v.Status)
	fmt.Fprintf(&b, "revision: %d\n", v.Revision)
	if !v.ConfirmedAt.IsZero() {
		fmt.Fprintf(&b, "confirmed: %s\n", v.ConfirmedAt.Format(time.RFC3339))
	}
	if !v.CanceledAt.IsZero() {
		fmt.Fprintf(&b, "canceled: %s\n", v.CanceledAt.Format(time.RFC3339))
	}
	for _, it := range v.Items {
		fmt.Fprintf(&b, "  - %s = %s\n", it, it.TotalPrice())
	}
	fmt.Fprintf(&b, "total:    %s\n", v.Total)
	_, err := io.WriteString(o.w, b.String())
	return err
}

func (o *output) records(records []es.StreamRecord) error {
	if o.format == "json" {
		return o.json(records)
	}
	for _, r := range records {
		if _, err := fmt.Fprintf(
			o.w, "%d\t%s\t%s\t%s\n",
			r.Revision, r.RecordedAt.UTC().Format(time.RFC3339Nano), r.EventType, r.Data,
		); err != nil {
			return err
		}
	}
	return nil
}

// printMetrics writes counters and histogram summaries gathered from reg,
// one sample per line.
func printMetrics(w io.Writer, reg prometheus.Gatherer) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	lines := make([]string, 0)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%gs", name, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
