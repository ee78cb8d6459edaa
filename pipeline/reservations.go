package pipeline

import "math/big"

// reservations tracks the atomic units each in-flight run has claimed
// against the shared prepaid balance. A single goroutine owns the state;
// all mutation and queries go through its request channel, so there is no
// read-then-act race between overlapping runs.
type reservations struct {
	ops  chan reservationOp
	done chan struct{}
}

type reservationOp struct {
	kind   reservationOpKind
	runID  string
	amount *big.Int
	reply  chan *big.Int
}

type reservationOpKind int

const (
	opReserve reservationOpKind = iota
	opRelease
	opOutstandingExcept
)

func newReservations() *reservations {
	r := &reservations{
		ops:  make(chan reservationOp),
		done: make(chan struct{}),
	}
	go r.owner()
	return r
}

func (r *reservations) owner() {
	held := make(map[string]*big.Int)

	for {
		select {
		case op := <-r.ops:
			switch op.kind {
			case opReserve:
				held[op.runID] = new(big.Int).Set(op.amount)
			case opRelease:
				delete(held, op.runID)
			case opOutstandingExcept:
				total := new(big.Int)
				for runID, amount := range held {
					if runID != op.runID {
						total.Add(total, amount)
					}
				}
				op.reply <- total
			}
		case <-r.done:
			return
		}
	}
}

// Reserve claims amount for the run, replacing any previous claim.
func (r *reservations) Reserve(runID string, amount *big.Int) {
	select {
	case r.ops <- reservationOp{kind: opReserve, runID: runID, amount: amount}:
	case <-r.done:
	}
}

// Release drops the run's claim.
func (r *reservations) Release(runID string) {
	select {
	case r.ops <- reservationOp{kind: opRelease, runID: runID}:
	case <-r.done:
	}
}

// OutstandingExcept returns the total claimed by every run other than the
// given one.
func (r *reservations) OutstandingExcept(runID string) *big.Int {
	reply := make(chan *big.Int, 1)
	select {
	case r.ops <- reservationOp{kind: opOutstandingExcept, runID: runID, reply: reply}:
		return <-reply
	case <-r.done:
		return new(big.Int)
	}
}

// Close stops the owner goroutine.
func (r *reservations) Close() {
	close(r.done)
}
