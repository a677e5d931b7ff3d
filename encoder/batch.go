package encoder

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one slot of a batch. Exactly one of Artifact
// and Err is set.
type Result struct {
	Index    int
	Payload  string
	Artifact *Artifact
	Err      error
}

// OK reports whether the slot produced an artifact.
func (r Result) OK() bool { return r.Err == nil && r.Artifact != nil }

// Batch builds one request per payload, all sharing opts.
func Batch(payloads []string, opts Options) []Request {
	reqs := make([]Request, len(payloads))
	for i, p := range payloads {
		reqs[i] = Request{Payload: p, Options: opts}
	}
	return reqs
}

// EncodeAll encodes every request and returns one Result per request in
// input order. A failing request never affects its siblings. At most
// workers requests are encoded at once; workers <= 0 means GOMAXPROCS.
//
// If ctx is cancelled, requests that have not started yet report ctx.Err().
func EncodeAll(ctx context.Context, reqs []Request, workers int) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, req := range reqs {
		i, req := i, req
		results[i] = Result{Index: i, Payload: req.Payload}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			a, err := EncodeRequest(req)
			if err != nil {
				results[i].Err = err
				return nil
			}
			a.Index = i
			results[i].Artifact = a
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Artifacts returns the successful artifacts of results, in order.
func Artifacts(results []Result) []*Artifact {
	out := make([]*Artifact, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Artifact)
		}
	}
	return out
}
