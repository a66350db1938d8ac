package state

/**
 * Pool owns the tables of one VM and counts references to them. A table
 * whose count drops to zero is put on the zero count table list and is
 * only reclaimed by Sweep, which the VM runs at points where every live
 * value is held by a counted location (a register, an upvalue or another
 * table). Reclaimed tables go to a free list and are handed out again
 * with a fresh id.
 */
type Pool struct {
	nextID uint64
	free   []*Table
	zct    []*Table
	regs   [][]Value

	stats PoolStats
}

type PoolStats struct {
	Allocated int
	Reused    int
	Collected int
	Sweeps    int
}

func NewPool() *Pool {
	return &Pool{}
}

func (p *Pool) Stats() PoolStats {
	return p.stats
}

func (p *Pool) NewTable(nArr, nRec int) *Table {
	p.nextID++
	var t *Table
	if n := len(p.free); n > 0 {
		t = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		t.collected = false
		p.stats.Reused++
	} else {
		t = &Table{pool: p}
		p.stats.Allocated++
	}
	t.id = p.nextID
	if nArr > 0 && cap(t.array) < nArr {
		t.array = make([]Value, 0, nArr)
	}
	if nRec > 0 && t.strIndex == nil {
		t.strIndex = make(map[string]int, nRec)
	}
	return t
}

func (p *Pool) Retain(val Value) {
	if t, ok := val.(*Table); ok {
		if t.collected {
			log.Warningf("retain of collected %s", t)
			return
		}
		t.refs++
	}
}

func (p *Pool) Release(val Value) {
	if t, ok := val.(*Table); ok && !t.collected && t.refs > 0 {
		t.refs--
		if t.refs == 0 && !t.inZCT {
			t.inZCT = true
			p.zct = append(p.zct, t)
		}
	}
}

/**
 * Disown gives up a reference to a table that is handed to host code. The
 * table is not queued for collection; the host keeps it alive by calling
 * Retain, or lets the Go runtime reclaim it.
 */
func (p *Pool) Disown(val Value) {
	if t, ok := val.(*Table); ok && t.refs > 0 {
		t.refs--
	}
	p.Escape(val)
}

/* Escape takes an unreferenced table off the zero count table list */
func (p *Pool) Escape(val Value) {
	if t, ok := val.(*Table); ok && t.refs == 0 {
		t.inZCT = false
	}
}

/* Sweep reclaims every queued table that is still unreferenced. */
func (p *Pool) Sweep() int {
	p.stats.Sweeps++
	n := 0
	for len(p.zct) > 0 {
		zct := p.zct
		p.zct = nil
		for _, t := range zct {
			if !t.inZCT {
				continue
			}
			t.inZCT = false
			if t.refs > 0 || t.collected {
				continue
			}
			t.reset()
			t.collected = true
			p.free = append(p.free, t)
			n++
		}
	}
	p.stats.Collected += n
	return n
}

/* Pending is the length of the zero count table list */
func (p *Pool) Pending() int {
	return len(p.zct)
}

func (p *Pool) acquireRegs(n int) []Value {
	for i := len(p.regs) - 1; i >= 0; i-- {
		if s := p.regs[i]; cap(s) >= n {
			p.regs[i] = p.regs[len(p.regs)-1]
			p.regs = p.regs[:len(p.regs)-1]
			return s[:n]
		}
	}
	return make([]Value, n, max(n, 8))
}

func (p *Pool) releaseRegs(s []Value) {
	if cap(s) == 0 || len(p.regs) >= 64 {
		return
	}
	clear(s[:cap(s)])
	p.regs = append(p.regs, s[:0])
}
