package pool

import (
	"sort"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/status"
)

var Logger = logger.GetLogger("pool")

var (
	createdTotal     = metrics.GetOrCreateCounter("sessmux_sessions_created_total")
	reusedTotal      = metrics.GetOrCreateCounter("sessmux_sessions_reused_total")
	reconnectedTotal = metrics.GetOrCreateCounter("sessmux_sessions_reconnected_total")
	collectedTotal   = metrics.GetOrCreateCounter("sessmux_sessions_collected_total")
)

// poolEntry bundles one session with the pool-side bookkeeping that must
// stay in lockstep with it: the activity (in-use) count and the manual
// pin flag. All fields are guarded by sessionPool.mu.
type poolEntry struct {
	sess     session.ISession
	activity uint32
	pinned   bool
}

// sessionPool implements ISessionPool. A single mutex guards the session
// map and the per-entry counters; it is held only for the O(1) map
// mutations themselves, never across a connect or invoke call into the
// transport.
type sessionPool struct {
	factory session.FactoryFunc

	mu      sync.Mutex
	entries map[session.ClientConnectionID]*poolEntry
	nextID  session.ClientConnectionID
}

// NewSessionPool creates an empty pool. New sessions are produced by the
// given factory, which is called (and the resulting session connected)
// without the pool lock held.
func NewSessionPool(factory session.FactoryFunc) ISessionPool {
	return &sessionPool{
		factory: factory,
		entries: make(map[session.ClientConnectionID]*poolEntry),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (p *sessionPool) AcquireSession(serverURI string, settings session.SessionSettings) (session.ISession, error) {
	// Fast path: reuse an existing session for the same key
	p.mu.Lock()
	if e := p.findCompatible(serverURI, settings); e != nil {
		e.activity++
		s := e.sess
		activity := e.activity
		p.mu.Unlock()
		reusedTotal.Inc()
		Logger.Debugf("acquired existing session %d for %s (activity now %d)",
			s.ClientConnectionID(), serverURI, activity)
		return s, nil
	}
	id := p.nextID
	p.nextID++
	p.mu.Unlock()

	// Create and connect the new session outside the lock
	Logger.Debugf("creating session %d for %s", id, serverURI)
	s, err := p.factory(id, serverURI, settings)
	if err != nil {
		return nil, status.ConnectionErrorf("failed to create session for %s: %v", serverURI, err)
	}
	if err := s.Connect(); err != nil {
		return nil, status.ConnectionErrorf("failed to connect session %d to %s: %v", id, serverURI, err)
	}

	// Insert, unless a concurrent acquire for the same key won the race.
	// In that case the racer's session is reused and ours is dropped, so
	// the pool keeps at most one session per key.
	p.mu.Lock()
	if e := p.findCompatible(serverURI, settings); e != nil {
		e.activity++
		winner := e.sess
		p.mu.Unlock()
		reusedTotal.Inc()
		Logger.Debugf("discarding session %d, lost creation race for %s to session %d",
			id, serverURI, winner.ClientConnectionID())
		_ = s.Disconnect()
		return winner, nil
	}
	p.entries[id] = &poolEntry{sess: s, activity: 1}
	p.mu.Unlock()

	createdTotal.Inc()
	Logger.Debugf("acquired new session %d for %s", id, serverURI)
	return s, nil
}

func (p *sessionPool) AcquireExistingSession(id session.ClientConnectionID) (session.ISession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, status.NotFoundErrorf("no session with connection id %d", id)
	}
	e.activity++
	Logger.Debugf("acquired existing session %d (activity now %d)", id, e.activity)
	return e.sess, nil
}

func (p *sessionPool) ReleaseSession(s session.ISession, allowGC bool) error {
	id := s.ClientConnectionID()

	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		Logger.Warningf("release of unknown session %d ignored", id)
		return status.NotFoundErrorf("no session with connection id %d", id)
	}
	if e.activity == 0 {
		p.mu.Unlock()
		return status.ProgrammingErrorf("session %d released more often than acquired", id)
	}
	e.activity--
	Logger.Debugf("released session %d (activity now %d)", id, e.activity)

	// Removal policy: a fully released, disconnected, unpinned session is
	// reclaimed right here rather than waiting for the next housekeeping
	// pass, so AllSessionInformations never reports sessions no caller
	// can act on.
	if allowGC && e.activity == 0 && !e.pinned && e.sess.Status() != session.StatusConnected {
		delete(p.entries, id)
		p.mu.Unlock()
		collectedTotal.Inc()
		Logger.Debugf("collected session %d on release", id)
		return nil
	}
	p.mu.Unlock()
	return nil
}

func (p *sessionPool) ManuallyConnect(serverURI string, settings session.SessionSettings) (session.ClientConnectionID, error) {
	s, err := p.AcquireSession(serverURI, settings)
	if err != nil {
		return 0, err
	}
	id := s.ClientConnectionID()

	// Pin before dropping the activity reference, so the session cannot
	// be collected in between.
	p.mu.Lock()
	if e, ok := p.entries[id]; ok {
		e.pinned = true
	}
	p.mu.Unlock()

	if err := p.ReleaseSession(s, false); err != nil {
		return 0, err
	}
	Logger.Infof("manually connected session %d to %s", id, serverURI)
	return id, nil
}

func (p *sessionPool) ManuallyDisconnect(id session.ClientConnectionID) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return status.NotFoundErrorf("no session with connection id %d", id)
	}
	if !e.pinned {
		p.mu.Unlock()
		return status.ProgrammingErrorf("session %d was not created via ManuallyConnect", id)
	}
	if e.activity > 0 {
		p.mu.Unlock()
		return status.ProgrammingErrorf("session %d still has %d active references", id, e.activity)
	}
	delete(p.entries, id)
	p.mu.Unlock()

	err := e.sess.Disconnect()
	Logger.Infof("manually disconnected session %d", id)
	return err
}

func (p *sessionPool) DoHouseKeeping() {
	type candidate struct {
		id        session.ClientConnectionID
		sess      session.ISession
		reconnect bool
	}

	// Classify under the lock, act outside of it
	p.mu.Lock()
	var candidates []candidate
	for id, e := range p.entries {
		if e.sess.Status() == session.StatusConnected {
			continue
		}
		candidates = append(candidates, candidate{
			id:        id,
			sess:      e.sess,
			reconnect: e.activity > 0 || e.pinned,
		})
	}
	p.mu.Unlock()

	for _, c := range candidates {
		if c.reconnect {
			Logger.Infof("housekeeping: reconnecting session %d to %s", c.id, c.sess.ServerURI())
			if err := c.sess.Connect(); err != nil {
				Logger.Warningf("housekeeping: failed to reconnect session %d: %v", c.id, err)
				continue
			}
			reconnectedTotal.Inc()
			continue
		}

		// Re-verify eligibility, the session may have been acquired or
		// pinned since the snapshot was taken.
		p.mu.Lock()
		e, ok := p.entries[c.id]
		if ok && e.activity == 0 && !e.pinned && e.sess.Status() != session.StatusConnected {
			delete(p.entries, c.id)
			p.mu.Unlock()
			collectedTotal.Inc()
			Logger.Debugf("housekeeping: collected session %d", c.id)
			continue
		}
		p.mu.Unlock()
	}
}

func (p *sessionPool) RecordSessionStatus(id session.ClientConnectionID, st session.ConnectionStatus) {
	p.mu.Lock()
	e, ok := p.entries[id]
	p.mu.Unlock()

	if !ok {
		Logger.Debugf("status %s for unknown session %d ignored", st, id)
		return
	}
	e.sess.RecordStatus(st)
	Logger.Debugf("session %d status changed to %s", id, st)
}

func (p *sessionPool) SessionInformation(id session.ClientConnectionID) (session.SessionInformation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return session.SessionInformation{}, status.NotFoundErrorf("no session with connection id %d", id)
	}
	return p.information(e), nil
}

func (p *sessionPool) AllSessionInformations() []session.SessionInformation {
	p.mu.Lock()
	infos := make([]session.SessionInformation, 0, len(p.entries))
	for _, e := range p.entries {
		infos = append(infos, p.information(e))
	}
	p.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ClientConnectionID < infos[j].ClientConnectionID
	})
	return infos
}

func (p *sessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *sessionPool) DeleteAllSessions() {
	p.mu.Lock()
	removed := make([]session.ISession, 0, len(p.entries))
	for id, e := range p.entries {
		removed = append(removed, e.sess)
		delete(p.entries, id)
	}
	p.mu.Unlock()

	for _, s := range removed {
		if err := s.Disconnect(); err != nil {
			Logger.Warningf("failed to disconnect session %d: %v", s.ClientConnectionID(), err)
		}
	}
	Logger.Infof("deleted all %d sessions", len(removed))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// findCompatible returns the entry serving the given (serverURI,
// settings) key, or nil. Callers must hold p.mu. Entries are matched
// regardless of connection status: a disconnected session for the right
// key is still the session for that key, reconnecting it is
// housekeeping's job.
func (p *sessionPool) findCompatible(serverURI string, settings session.SessionSettings) *poolEntry {
	var best *poolEntry
	var bestID session.ClientConnectionID
	for id, e := range p.entries {
		if e.sess.ServerURI() != serverURI || !e.sess.Settings().Compatible(settings) {
			continue
		}
		if best == nil || id < bestID {
			best, bestID = e, id
		}
	}
	return best
}

// information builds a snapshot of one entry. Callers must hold p.mu.
func (p *sessionPool) information(e *poolEntry) session.SessionInformation {
	info := e.sess.Information()
	info.ActivityCount = e.activity
	info.Pinned = e.pinned
	return info
}
