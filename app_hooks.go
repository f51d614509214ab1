package messpass

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/lifecycle"
	"github.com/MrEthical07/messpass/session"
	"github.com/MrEthical07/messpass/stores"
)

func (a *App) emit(ev AuditEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now()
	}
	a.audit.Emit(a.ctx, ev)
}

// onUserChange reloads the user-scoped stores for the new user. Changes
// made while auth is still on its first load are left to the dependency
// wait in the manager.
func (a *App) onUserChange(prev, next *session.User) {
	ev := AuditEvent{Type: AuditSessionChanged, Success: true, Metadata: map[string]string{}}
	if prev != nil {
		ev.Metadata["previous_user"] = prev.ID
	}
	if next != nil {
		ev.UserID = next.ID
	}
	a.emit(ev)

	if a.manager.State(StoreAuth).Status == lifecycle.Initializing {
		return
	}
	for _, name := range userScoped {
		switch name {
		case StoreMembership:
			a.membership.Reset()
		case StoreMeals:
			a.meals.Reset()
		case StoreAbsences:
			a.absences.Reset()
		}
		if err := a.manager.Reset(name); err != nil {
			a.log.WithError(err).WithField("store", name).Warn("resetting user store")
			continue
		}
		if err := a.manager.Start(name); err != nil {
			a.log.WithError(err).WithField("store", name).Debug("user store not restarted")
		}
	}
}

func (a *App) onStoreState(st StoreState) {
	switch st.Status {
	case lifecycle.Ready:
		a.metrics.Inc(MetricStoreReady)
		if st.Name == StoreAuth && a.auth.Snapshot().Data.Offline {
			a.metrics.Inc(MetricOfflineFallback)
		}
		a.emit(AuditEvent{Type: AuditStoreReady, Store: st.Name, Success: true})
	case lifecycle.Error:
		a.metrics.Inc(MetricStoreError)
		ev := AuditEvent{Type: AuditStoreError, Store: st.Name}
		if st.Err != nil {
			ev.Error = st.Err.Kind.String()
			ev.Metadata = map[string]string{"message": st.Err.Message}
		}
		a.emit(ev)
	}
}

func (a *App) onStale(name string, generation uint64) {
	a.metrics.Inc(MetricStoreStale)
	a.emit(AuditEvent{
		Type:     AuditStoreStale,
		Store:    name,
		Success:  true,
		Metadata: map[string]string{"generation": strconv.FormatUint(generation, 10)},
	})
}

func (a *App) onAction(ev stores.ActionEvent) {
	switch {
	case ev.Stale:
		a.metrics.Inc(MetricActionStale)
	case ev.Err != nil:
		a.metrics.Inc(MetricActionFailure)
	default:
		a.metrics.Inc(MetricActionSuccess)
	}
	if ev.Action == "load" {
		if !ev.Stale {
			a.metrics.Observe(MetricStoreLoadLatency, ev.Duration)
		}
		return
	}
	if ev.Err != nil {
		a.emit(AuditEvent{
			Type:     AuditActionFailed,
			Store:    ev.Store,
			Error:    ev.Err.Error(),
			Metadata: map[string]string{"action": ev.Action, "elapsed": ev.Duration.Round(time.Microsecond).String()},
		})
	}
}

// onBackendChange runs on circuit breaker transitions.
func (a *App) onBackendChange(online bool) {
	a.network.SetOnline(online)
	typ := AuditBackendOnline
	if online {
		a.metrics.Inc(MetricBackendOnline)
	} else {
		typ = AuditBackendOffline
		a.metrics.Inc(MetricBackendOffline)
	}
	a.log.WithFields(logrus.Fields{"online": online}).Info("backend reachability changed")
	a.emit(AuditEvent{Type: typ, Success: online})
}
