package handler

import "shortlink/storage"

type counter struct {
	Clicks int
}

func touch(r *storage.URLRecord, v storage.URLRecord) {
	r.Clicks++           // want "URLRecord.Clicks written outside the store"
	v.Clicks = 10        // want "URLRecord.Clicks written outside the store"
	(r.Clicks) += 2      // want "URLRecord.Clicks written outside the store"
	p := &r.Clicks       // want "URLRecord.Clicks written outside the store"
	_ = p

	c := counter{}
	c.Clicks++
	r.Short = "abc123"
	_ = r.Clicks + v.Clicks
}
