package uvbridge

// Idle, Prepare and Check are the three loop-phase handles from spec.md
// §4.6: each exposes start(cb)/stop() and fires once per loop iteration in
// the fixed phase order (spec.md §5).

// Idle fires on every loop iteration where no pending I/O event ran; timers
// firing in the same iteration do not suppress it (spec.md §5's phase list:
// "timers -> pending I/O -> idle -> ...").
type Idle struct {
	Handle
	cb func()
}

func NewIdle(ctx *Context) *Idle {
	h := &Idle{Handle: newHandle(ctx, KindIdle)}
	ctx.registerHandle(&h.Handle)
	return h
}

func (i *Idle) Start(cb func()) error {
	if i.IsClosing() {
		return NewStateError("start", "idle handle is closing")
	}
	i.cb = cb
	i.markActive()
	i.ctx.loop.AddIdle(i.id, func() { i.ctx.dispatch(i.cb) })
	return nil
}

func (i *Idle) Stop() {
	i.ctx.loop.RemoveIdle(i.id)
	i.markInactive()
}

func (i *Idle) Close(cb func()) error {
	if err := i.beginClose(cb); err != nil {
		return err
	}
	i.ctx.loop.RemoveIdle(i.id)
	i.ctx.unregisterHandle(&i.Handle)
	i.finishClose()
	return nil
}

// Prepare fires once per iteration just before the poll phase.
type Prepare struct {
	Handle
	cb func()
}

func NewPrepare(ctx *Context) *Prepare {
	h := &Prepare{Handle: newHandle(ctx, KindPrepare)}
	ctx.registerHandle(&h.Handle)
	return h
}

func (p *Prepare) Start(cb func()) error {
	if p.IsClosing() {
		return NewStateError("start", "prepare handle is closing")
	}
	p.cb = cb
	p.markActive()
	p.ctx.loop.AddPrepare(p.id, func() { p.ctx.dispatch(p.cb) })
	return nil
}

func (p *Prepare) Stop() {
	p.ctx.loop.RemovePrepare(p.id)
	p.markInactive()
}

func (p *Prepare) Close(cb func()) error {
	if err := p.beginClose(cb); err != nil {
		return err
	}
	p.ctx.loop.RemovePrepare(p.id)
	p.ctx.unregisterHandle(&p.Handle)
	p.finishClose()
	return nil
}

// Check fires once per iteration just after the poll phase.
type Check struct {
	Handle
	cb func()
}

func NewCheck(ctx *Context) *Check {
	h := &Check{Handle: newHandle(ctx, KindCheck)}
	ctx.registerHandle(&h.Handle)
	return h
}

func (c *Check) Start(cb func()) error {
	if c.IsClosing() {
		return NewStateError("start", "check handle is closing")
	}
	c.cb = cb
	c.markActive()
	c.ctx.loop.AddCheck(c.id, func() { c.ctx.dispatch(c.cb) })
	return nil
}

func (c *Check) Stop() {
	c.ctx.loop.RemoveCheck(c.id)
	c.markInactive()
}

func (c *Check) Close(cb func()) error {
	if err := c.beginClose(cb); err != nil {
		return err
	}
	c.ctx.loop.RemoveCheck(c.id)
	c.ctx.unregisterHandle(&c.Handle)
	c.finishClose()
	return nil
}
