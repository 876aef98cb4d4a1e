// Package errtype implements the structured error taxonomy described in
// spec §7: every failure the core surfaces is classified into one of a
// fixed set of kinds so the driver knows, without string-matching, whether
// to retry, roll back, or escalate.
//
// Grounded on the sentinel-error idiom the teacher uses in
// zk/syncer/l1_syncer.go (errorShortResponseLT32, errorShortResponseLT96)
// generalized from two ad hoc values into the full taxonomy spec §7 names.
package errtype

import "errors"

// Kind is one of the stable error classes from spec §7.
type Kind string

const (
	KindTransport        Kind = "transport"
	KindAbsent           Kind = "absent"
	KindDecode           Kind = "decode"
	KindPersistCreate    Kind = "persistence-create"
	KindPersistUpsert    Kind = "persistence-upsert"
	KindPersistUpdate    Kind = "persistence-update"
	KindPersistQuery     Kind = "persistence-query"
	KindNumeric          Kind = "numeric"
	KindViewRevert       Kind = "view-revert"
	KindParam            Kind = "param"
)

// Sentinel errors, one per Kind, for errors.Is-based matching at call sites.
var (
	ErrTransport     = errors.New("rpc transport error")
	ErrAbsent        = errors.New("block not yet available at head")
	ErrDecode        = errors.New("malformed rpc payload")
	ErrPersistCreate = errors.New("persistence create failed")
	ErrPersistUpsert = errors.New("persistence upsert failed")
	ErrPersistUpdate = errors.New("persistence update failed")
	ErrPersistQuery  = errors.New("persistence query failed")
	ErrNumeric       = errors.New("numeric literal construction failed")
	ErrViewRevert    = errors.New("contract view call reverted")
	ErrParam         = errors.New("malformed caller-supplied parameter")
)

var sentinelByKind = map[Kind]error{
	KindTransport:     ErrTransport,
	KindAbsent:        ErrAbsent,
	KindDecode:        ErrDecode,
	KindPersistCreate: ErrPersistCreate,
	KindPersistUpsert: ErrPersistUpsert,
	KindPersistUpdate: ErrPersistUpdate,
	KindPersistQuery:  ErrPersistQuery,
	KindNumeric:       ErrNumeric,
	KindViewRevert:    ErrViewRevert,
	KindParam:         ErrParam,
}

// Wrap tags err with the given Kind's sentinel so it can later be classified
// with Classify, while preserving the original error text via %w.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	sentinel, ok := sentinelByKind[kind]
	if !ok {
		return err
	}
	return &classifiedError{kind: kind, sentinel: sentinel, cause: err}
}

type classifiedError struct {
	kind     Kind
	sentinel error
	cause    error
}

func (e *classifiedError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *classifiedError) Unwrap() error { return e.cause }
func (e *classifiedError) Is(target error) bool { return target == e.sentinel }

func (k Kind) String() string { return string(k) }

// Classify returns the Kind tagged onto err by Wrap, or "" if err was never
// wrapped by this package.
func Classify(err error) Kind {
	for kind, sentinel := range sentinelByKind {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// Retriable reports whether the driver should retry the same height/row on
// its next tick rather than escalate, per spec §7's propagation policy.
func Retriable(err error) bool {
	switch Classify(err) {
	case KindTransport, KindAbsent, KindPersistCreate, KindPersistUpsert, KindPersistUpdate, KindPersistQuery:
		return true
	default:
		return false
	}
}
