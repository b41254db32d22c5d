package docstore

import (
	"context"
	"time"
)

// poller periodically refreshes one collection while subscribers exist.
type poller struct {
	stop chan struct{}
	refs int
}

// Subscribe registers callback for changes to collection and returns a
// function that cancels the subscription. The callback fires immediately
// with the current data, then whenever a local write or a poll observes new
// contents. Polling runs only while at least one subscriber exists for the
// collection.
func (s *Store) Subscribe(ctx context.Context, collection string, callback func([]Document)) (func(), error) {
	docs, err := s.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.subs[collection] == nil {
		s.subs[collection] = map[int]func([]Document){}
	}
	s.subs[collection][id] = callback
	p := s.pollers[collection]
	if p == nil {
		p = &poller{stop: make(chan struct{})}
		s.pollers[collection] = p
		go s.poll(collection, p.stop)
	}
	p.refs++
	s.subMu.Unlock()

	callback(docs)
	return func() { s.unsubscribe(collection, id) }, nil
}

func (s *Store) unsubscribe(collection string, id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if subs := s.subs[collection]; subs != nil {
		delete(subs, id)
	}
	p := s.pollers[collection]
	if p == nil {
		return
	}
	p.refs--
	if p.refs <= 0 {
		close(p.stop)
		delete(s.pollers, collection)
	}
}

func (s *Store) poll(collection string, stop chan struct{}) {
	t := time.NewTicker(s.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// Force a revalidation; Get notifies on new content.
			if _, err := s.get(context.Background(), collection, true); err != nil {
				s.log.Warn("docstore", "collection", collection, "poll", err)
			}
		}
	}
}

// notify fans docs out to every subscriber of collection. Callbacks run on
// the caller's goroutine and receive their own copy of the data.
func (s *Store) notify(collection string, docs []Document) {
	s.subMu.Lock()
	callbacks := make([]func([]Document), 0, len(s.subs[collection]))
	for _, cb := range s.subs[collection] {
		callbacks = append(callbacks, cb)
	}
	s.subMu.Unlock()
	for _, cb := range callbacks {
		cb(cloneDocuments(docs))
	}
}
