package state

/* registers is the register file of one activation */
type registers struct {
	pool  *Pool
	slots []Value
}

func newRegisters(pool *Pool, size int) *registers {
	r := &registers{pool: pool, slots: pool.acquireRegs(size)}
	for i := range r.slots {
		r.slots[i] = Nil
	}
	return r
}

func (r *registers) get(idx int) Value {
	if idx < len(r.slots) {
		if v := r.slots[idx]; v != nil {
			return v
		}
	}
	return Nil
}

func (r *registers) set(idx int, val Value) {
	if val == nil {
		val = Nil
	}
	r.ensure(idx + 1)
	r.pool.Retain(val)
	old := r.slots[idx]
	r.slots[idx] = val
	r.pool.Release(old)
}

func (r *registers) ensure(n int) {
	for len(r.slots) < n {
		r.slots = append(r.slots, Nil)
	}
}

/* copy of the n registers starting at idx */
func (r *registers) slice(idx, n int) []Value {
	if n <= 0 {
		return nil
	}
	vals := make([]Value, n)
	for i := range vals {
		vals[i] = r.get(idx + i)
	}
	return vals
}

func (r *registers) release() {
	for i, v := range r.slots {
		r.pool.Release(v)
		r.slots[i] = nil
	}
	r.pool.releaseRegs(r.slots)
	r.slots = nil
}

/* frame is an activation parked by a suspension, waiting to be continued */
type frame interface {
	resume() ([]Value, error)
}

type frameStack struct {
	frames []frame
}

func (s *frameStack) len() int {
	return len(s.frames)
}

func (s *frameStack) push(f frame) {
	s.frames = append(s.frames, f)
}

/* pushBottom makes f the innermost frame, continued by the suspended CALL */
func (s *frameStack) pushBottom(f frame) {
	s.frames = append(s.frames, nil)
	copy(s.frames[1:], s.frames)
	s.frames[0] = f
}

func (s *frameStack) pop() frame {
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	f := s.frames[n-1]
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	return f
}
