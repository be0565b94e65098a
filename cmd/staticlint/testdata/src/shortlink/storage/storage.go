package storage

type URLRecord struct {
	Short  string
	Clicks int64
}

func Increment(r *URLRecord) {
	r.Clicks++
	p := &r.Clicks
	*p += 0
}
