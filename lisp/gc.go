// Copyright © 2018 The ELPS authors

package lisp

import (
	"time"

	"github.com/dustin/go-humanize"
)

// GCStats summarizes one collection.
type GCStats struct {
	Freed    int
	Live     int
	Duration time.Duration
	// Per kind counts of live objects and free slots.
	Kinds []GCKindStats
}

// GCKindStats reports the arena usage of one heap kind.
type GCKindStats struct {
	Kind Tag
	Used int
	Free int
}

type marker struct {
	h    *Heap
	work []Value
}

func (m *marker) push(v Value) {
	var fresh bool
	switch v.tag {
	case TagCons:
		fresh = m.h.conses.setMark(v.index())
	case TagString:
		fresh = m.h.strings.setMark(v.index())
	case TagVector:
		fresh = m.h.vectors.setMark(v.index())
	case TagRecord:
		fresh = m.h.records.setMark(v.index())
	case TagBigInt:
		m.h.bigints.setMark(v.index())
	case TagFunction:
		fresh = m.h.funs.setMark(v.index())
	case TagHashTable:
		fresh = m.h.tables.setMark(v.index())
	case TagEnv:
		if v != emptyLexEnv {
			fresh = m.h.envs.setMark(v.index())
		}
	}
	if fresh {
		m.work = append(m.work, v)
	}
}

func (m *marker) pushAll(vs []Value) {
	for _, v := range vs {
		m.push(v)
	}
}

func (m *marker) drain() {
	for len(m.work) > 0 {
		n := len(m.work) - 1
		v := m.work[n]
		m.work = m.work[:n]
		switch v.tag {
		case TagCons:
			c := m.h.conses.get(v.index())
			m.push(c.car)
			m.push(c.cdr)
		case TagVector:
			m.pushAll(m.h.vectors.get(v.index()).items)
		case TagRecord:
			m.pushAll(m.h.records.get(v.index()).items)
		case TagFunction:
			fn := m.h.funs.get(v.index())
			m.push(fn.Args)
			m.push(fn.Body)
			m.push(fn.Env)
			m.push(fn.Expander)
			if fn.Code != nil {
				m.push(fn.Code.ArgDesc)
				m.push(fn.Code.Constants)
				m.push(fn.Code.Doc)
				m.push(fn.Code.Interactive)
			}
		case TagHashTable:
			t := m.h.tables.get(v.index())
			for i := range t.entries {
				e := &t.entries[i]
				if !e.deleted {
					m.push(e.key)
					m.push(e.val)
				}
			}
		case TagEnv:
			e := m.h.envs.get(v.index())
			for _, b := range e.vars {
				m.push(b.val)
			}
			m.push(e.parent)
		}
	}
}

// collect performs a full stop-the-world mark and sweep.  The caller must
// hold the runtime lock and every live value must be reachable from a
// root.
func (rt *Runtime) collect() GCStats {
	start := time.Now()
	h := rt.Heap
	m := &marker{h: h, work: make([]Value, 0, 256)}
	for _, sym := range rt.Symbols.syms {
		m.push(sym.Value)
		m.push(sym.Function)
		m.push(sym.Plist)
		m.drain()
	}
	m.pushAll(rt.subrs)
	for v := range rt.protected {
		m.push(v)
	}
	for c := range rt.contexts {
		c.markRoots(m)
	}
	m.drain()

	freed := h.conses.sweep() + h.strings.sweep() + h.vectors.sweep() +
		h.records.sweep() + h.bigints.sweep() + h.funs.sweep() +
		h.tables.sweep() + h.envs.sweep()
	h.sinceGC = 0
	h.pending = false
	h.Collections++
	stats := GCStats{
		Freed:    freed,
		Live:     h.Live(),
		Duration: time.Since(start),
		Kinds:    h.kindStats(),
	}
	if v, ok := rt.SymbolValue(symbolValue(SymGCMessages)); ok && v.Truthy() {
		rt.Logger.Infof("garbage collection %s: freed %s, live %s (%s)",
			humanize.Ordinal(h.Collections), humanize.Comma(int64(stats.Freed)), humanize.Comma(int64(stats.Live)), stats.Duration)
	} else {
		rt.Logger.Debugf("garbage collection %d: freed %d, live %d", h.Collections, stats.Freed, stats.Live)
	}
	if h.MaxObjects > 0 && stats.Live >= h.MaxObjects {
		panic(&FatalError{Msg: "memory exhausted", Live: stats.Live})
	}
	return stats
}

func (h *Heap) kindStats() []GCKindStats {
	k := func(tag Tag, live, capacity int) GCKindStats {
		return GCKindStats{Kind: tag, Used: live, Free: capacity - live}
	}
	return []GCKindStats{
		k(TagCons, h.conses.live, h.conses.capacity()),
		k(TagString, h.strings.live, h.strings.capacity()),
		k(TagVector, h.vectors.live, h.vectors.capacity()),
		k(TagRecord, h.records.live, h.records.capacity()),
		k(TagBigInt, h.bigints.live, h.bigints.capacity()),
		k(TagFunction, h.funs.live, h.funs.capacity()),
		k(TagHashTable, h.tables.live, h.tables.capacity()),
		k(TagEnv, h.envs.live, h.envs.capacity()),
	}
}

func (c *Context) markRoots(m *marker) {
	for i := range c.specpdl {
		b := &c.specpdl[i]
		m.push(b.old)
		m.push(b.forms)
		m.push(b.env)
	}
	for i := range c.handlers {
		m.push(c.handlers[i].tag)
	}
	for _, f := range c.frames {
		m.push(f.fn)
		m.pushAll(f.args)
		m.push(f.env)
	}
	for _, vf := range c.vmframes {
		m.push(vf.fn)
		m.push(vf.constants)
		m.pushAll(vf.stack[:vf.sp])
	}
	m.pushAll(c.pins)
}

// GarbageCollect runs a collection immediately.  It must only be called
// from native functions, while the runtime lock is held.
func (c *Context) GarbageCollect() GCStats {
	return c.rt.collect()
}
