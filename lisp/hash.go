// Copyright © 2018 The ELPS authors

package lisp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"
)

var langHashBuiltins = []*langBuiltin{
	{"make-hash-table", 0, Many, builtinMakeHashTable,
		`Creates a hash table.  Keyword arguments :test (eq, eql, equal or a
		name given to define-hash-table-test), :size and :weakness are
		accepted.  Weak tables hold their entries strongly.`},
	{"gethash", 2, 3, builtinGethash, `Returns the value for KEY in TABLE, or DFLT.`},
	{"puthash", 3, 3, builtinPuthash, `Associates KEY with VALUE in TABLE and returns VALUE.`},
	{"remhash", 2, 2, builtinRemhash, `Removes KEY from TABLE.`},
	{"clrhash", 1, 1, builtinClrhash, `Removes all entries from TABLE and returns it.`},
	{"maphash", 2, 2, builtinMaphash, `Calls FUNCTION with each key and value of TABLE, in insertion order.`},
	{"hash-table-count", 1, 1, builtinHashTableCount, `Returns the number of entries in TABLE.`},
	{"hash-table-test", 1, 1, builtinHashTableTest, `Returns the name of the test of TABLE.`},
	{"hash-table-size", 1, 1, builtinHashTableSize, `Returns the current capacity of TABLE.`},
	{"hash-table-weakness", 1, 1, builtinHashTableWeakness, `Returns the weakness of TABLE.`},
	{"hash-table-keys", 1, 1, builtinHashTableKeys, `Returns a list of the keys of TABLE.`},
	{"hash-table-values", 1, 1, builtinHashTableValues, `Returns a list of the values of TABLE.`},
	{"copy-hash-table", 1, 1, builtinCopyHashTable, `Returns a copy of TABLE.  Keys and values are shared.`},
	{"sxhash-eq", 1, 1, builtinSxhashEq, `Returns a hash code for OBJ such that eq objects hash alike.`},
	{"sxhash-eql", 1, 1, builtinSxhashEql, `Returns a hash code for OBJ such that eql objects hash alike.`},
	{"sxhash-equal", 1, 1, builtinSxhashEqual, `Returns a hash code for OBJ such that equal objects hash alike.`},
	{"define-hash-table-test", 3, 3, builtinDefineHashTableTest,
		`Defines NAME as a hash table test using TEST to compare keys and HASH
		to compute hash codes.`},
}

// HashTable is a Lisp hash table.  Entries are kept in insertion order;
// removed entries leave a tombstone until the table is compacted.
type HashTable struct {
	Test     Value
	Weakness Value
	entries  []hashEntry
	index    map[uint64][]int
	count    int
	// iterating counts active maphash calls.  Compaction is deferred while
	// it is non-zero so entry indices stay stable.
	iterating int
}

type hashEntry struct {
	key     Value
	val     Value
	hash    uint64
	deleted bool
}

// Count returns the number of live entries.
func (t *HashTable) Count() int {
	return t.count
}

// NewHashTable allocates an empty table compared with test.
func (rt *Runtime) NewHashTable(test Value, size int) Value {
	rt.Heap.noteAlloc()
	t := HashTable{
		Test:    test,
		entries: make([]hashEntry, 0, size),
		index:   make(map[uint64][]int, size),
	}
	return heapValue(TagHashTable, rt.Heap.tables.alloc(t))
}

// HashTableFromData builds a table from alternating keys and values, as
// written in a #s(hash-table ...) literal.  Only the eq, eql and equal
// tests are available without a Context.
func (rt *Runtime) HashTableFromData(test Value, data []Value) (Value, error) {
	var ht hashTest
	switch test {
	case Nil, symbolValue(SymEql):
		ht = hashTest{noErr(rt.Eql), noErrHash(rt.sxhashEql)}
	case symbolValue(SymEq):
		ht = hashTest{noErr(eqValues), noErrHash(sxhashEq)}
	case symbolValue(SymEqual):
		ht = hashTest{noErr(rt.Equal), noErrHash(rt.sxhashEqual)}
	default:
		return Nil, fmt.Errorf("invalid hash table test %s", rt.Prin1String(test))
	}
	if len(data)%2 != 0 {
		return Nil, fmt.Errorf("odd number of elements in hash table data")
	}
	table := rt.NewHashTable(test, len(data)/2)
	t := rt.Table(table)
	for i := 0; i < len(data); i += 2 {
		key, val := data[i], data[i+1]
		h, _ := ht.hash(key)
		found := false
		for _, j := range t.index[h] {
			if ok, _ := ht.equal(key, t.entries[j].key); ok {
				t.entries[j].val = val
				found = true
				break
			}
		}
		if found {
			continue
		}
		t.entries = append(t.entries, hashEntry{key: key, val: val, hash: h})
		t.index[h] = append(t.index[h], len(t.entries)-1)
		t.count++
	}
	return table, nil
}

// hashTest compares and hashes keys for one table.
type hashTest struct {
	equal func(a, b Value) (bool, error)
	hash  func(v Value) (uint64, error)
}

func (c *Context) tableTest(test Value) (hashTest, error) {
	rt := c.rt
	switch test {
	case Nil, symbolValue(SymEql):
		return hashTest{noErr(rt.Eql), noErrHash(rt.sxhashEql)}, nil
	case symbolValue(SymEq):
		return hashTest{noErr(eqValues), noErrHash(sxhashEq)}, nil
	case symbolValue(SymEqual):
		return hashTest{noErr(rt.Equal), noErrHash(rt.sxhashEqual)}, nil
	}
	spec := rt.Get(test, c.sym("hash-table-test"))
	if !spec.IsCons() {
		return hashTest{}, c.Signal(SymError, rt.String("Invalid hash table test"), test)
	}
	eqfn, hashfn := rt.Car(spec), rt.Nth(1, spec)
	return hashTest{
		equal: func(a, b Value) (bool, error) {
			v, err := c.Funcall(eqfn, a, b)
			return v.Truthy(), err
		},
		hash: func(v Value) (uint64, error) {
			h, err := c.Funcall(hashfn, v)
			if err != nil {
				return 0, err
			}
			if h.IsFixnum() {
				return uint64(h.Fixnum()), nil
			}
			return rt.sxhashEqual(h), nil
		},
	}, nil
}

func noErrHash(fn func(Value) uint64) func(Value) (uint64, error) {
	return func(v Value) (uint64, error) { return fn(v), nil }
}

func (c *Context) checkTable(v Value) (*HashTable, error) {
	if v.tag != TagHashTable {
		return nil, c.WrongType(SymHashTablep, v)
	}
	return c.rt.Table(v), nil
}

// lookup returns the entry index of key in t, or -1.
func (c *Context) lookup(t *HashTable, test hashTest, key Value) (int, uint64, error) {
	h, err := test.hash(key)
	if err != nil {
		return -1, 0, err
	}
	for _, i := range t.index[h] {
		e := &t.entries[i]
		if e.deleted {
			continue
		}
		ok, err := test.equal(key, e.key)
		if err != nil {
			return -1, h, err
		}
		if ok {
			return i, h, nil
		}
	}
	return -1, h, nil
}

// Gethash returns the value associated with key in table.
func (c *Context) Gethash(table, key Value) (Value, bool, error) {
	t, err := c.checkTable(table)
	if err != nil {
		return Nil, false, err
	}
	test, err := c.tableTest(t.Test)
	if err != nil {
		return Nil, false, err
	}
	i, _, err := c.lookup(t, test, key)
	if err != nil || i < 0 {
		return Nil, false, err
	}
	return t.entries[i].val, true, nil
}

// Puthash associates key with val in table.
func (c *Context) Puthash(table, key, val Value) error {
	t, err := c.checkTable(table)
	if err != nil {
		return err
	}
	test, err := c.tableTest(t.Test)
	if err != nil {
		return err
	}
	i, h, err := c.lookup(t, test, key)
	if err != nil {
		return err
	}
	// A user test may have run arbitrary code; reload the table.
	t = c.rt.Table(table)
	if i >= 0 {
		t.entries[i].val = val
		return nil
	}
	t.entries = append(t.entries, hashEntry{key: key, val: val, hash: h})
	t.index[h] = append(t.index[h], len(t.entries)-1)
	t.count++
	return nil
}

// Remhash removes key from table.
func (c *Context) Remhash(table, key Value) error {
	t, err := c.checkTable(table)
	if err != nil {
		return err
	}
	test, err := c.tableTest(t.Test)
	if err != nil {
		return err
	}
	i, _, err := c.lookup(t, test, key)
	if err != nil || i < 0 {
		return err
	}
	t.entries[i] = hashEntry{deleted: true, hash: t.entries[i].hash}
	t.count--
	t.maybeCompact()
	return nil
}

func (t *HashTable) maybeCompact() {
	if t.iterating > 0 || len(t.entries) < 16 || t.count > len(t.entries)/2 {
		return
	}
	live := make([]hashEntry, 0, t.count)
	index := make(map[uint64][]int, t.count)
	for _, e := range t.entries {
		if e.deleted {
			continue
		}
		live = append(live, e)
		index[e.hash] = append(index[e.hash], len(live)-1)
	}
	t.entries = live
	t.index = index
}

func (t *HashTable) clear() {
	t.entries = t.entries[:0]
	t.index = make(map[uint64][]int)
	t.count = 0
}

func builtinMakeHashTable(c *Context, args []Value) (Value, error) {
	test, weak := symbolValue(SymEql), Nil
	size := 0
	for i := 0; i < len(args); i++ {
		kw := args[i]
		if i+1 >= len(args) {
			return Nil, c.Signal(SymError, c.rt.String("Invalid argument list"), kw)
		}
		val := args[i+1]
		i++
		switch c.rt.SymbolName(kw) {
		case ":test":
			if val.Truthy() {
				test = val
			}
			if _, err := c.tableTest(test); err != nil {
				return Nil, err
			}
		case ":size":
			if val.Truthy() {
				n, err := c.checkNatnum(val)
				if err != nil {
					return Nil, err
				}
				size = int(min(n, 1<<16))
			}
		case ":weakness":
			switch c.rt.SymbolName(val) {
			case "nil", "t", "key", "value", "key-or-value", "key-and-value":
				weak = val
			default:
				return Nil, c.Signal(SymError, c.rt.String("Invalid hash table weakness"), val)
			}
		case ":rehash-size", ":rehash-threshold", ":purecopy":
		default:
			return Nil, c.Signal(SymError, c.rt.String("Invalid argument list"), kw)
		}
	}
	v := c.rt.NewHashTable(test, size)
	c.rt.Table(v).Weakness = weak
	return v, nil
}

func builtinGethash(c *Context, args []Value) (Value, error) {
	v, ok, err := c.Gethash(args[1], args[0])
	if err != nil {
		return Nil, err
	}
	if !ok {
		return optArg(args, 2), nil
	}
	return v, nil
}

func builtinPuthash(c *Context, args []Value) (Value, error) {
	return args[1], c.Puthash(args[2], args[0], args[1])
}

func builtinRemhash(c *Context, args []Value) (Value, error) {
	return Nil, c.Remhash(args[1], args[0])
}

func builtinClrhash(c *Context, args []Value) (Value, error) {
	t, err := c.checkTable(args[0])
	if err != nil {
		return Nil, err
	}
	t.clear()
	return args[0], nil
}

// Maphash calls fn on each live entry of table.  Entries added during the
// walk are visited too.
func (c *Context) Maphash(table Value, fn func(k, v Value) error) error {
	t, err := c.checkTable(table)
	if err != nil {
		return err
	}
	t.iterating++
	defer func() {
		t := c.rt.Table(table)
		t.iterating--
		t.maybeCompact()
	}()
	for i := 0; i < len(c.rt.Table(table).entries); i++ {
		e := c.rt.Table(table).entries[i]
		if e.deleted {
			continue
		}
		if err := fn(e.key, e.val); err != nil {
			return err
		}
	}
	return nil
}

func builtinMaphash(c *Context, args []Value) (Value, error) {
	fn := args[0]
	return Nil, c.Maphash(args[1], func(k, v Value) error {
		_, err := c.Funcall(fn, k, v)
		return err
	})
}

func builtinHashTableCount(c *Context, args []Value) (Value, error) {
	t, err := c.checkTable(args[0])
	if err != nil {
		return Nil, err
	}
	return Int(int64(t.count)), nil
}

func builtinHashTableTest(c *Context, args []Value) (Value, error) {
	t, err := c.checkTable(args[0])
	if err != nil {
		return Nil, err
	}
	return t.Test, nil
}

func builtinHashTableSize(c *Context, args []Value) (Value, error) {
	t, err := c.checkTable(args[0])
	if err != nil {
		return Nil, err
	}
	return Int(int64(cap(t.entries))), nil
}

func builtinHashTableWeakness(c *Context, args []Value) (Value, error) {
	t, err := c.checkTable(args[0])
	if err != nil {
		return Nil, err
	}
	return t.Weakness, nil
}

func (c *Context) tableColumn(table Value, keys bool) (Value, error) {
	var items []Value
	err := c.Maphash(table, func(k, v Value) error {
		if keys {
			items = append(items, k)
		} else {
			items = append(items, v)
		}
		return nil
	})
	return c.rt.List(items...), err
}

func builtinHashTableKeys(c *Context, args []Value) (Value, error) {
	return c.tableColumn(args[0], true)
}

func builtinHashTableValues(c *Context, args []Value) (Value, error) {
	return c.tableColumn(args[0], false)
}

func builtinCopyHashTable(c *Context, args []Value) (Value, error) {
	t, err := c.checkTable(args[0])
	if err != nil {
		return Nil, err
	}
	v := c.rt.NewHashTable(t.Test, len(t.entries))
	nt := c.rt.Table(v)
	t = c.rt.Table(args[0])
	nt.Weakness = t.Weakness
	for _, e := range t.entries {
		if e.deleted {
			continue
		}
		nt.entries = append(nt.entries, e)
		nt.index[e.hash] = append(nt.index[e.hash], len(nt.entries)-1)
		nt.count++
	}
	return v, nil
}

func builtinDefineHashTableTest(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	c.rt.Put(args[0], c.sym("hash-table-test"), c.rt.List(args[1], args[2]))
	return Nil, nil
}

// Hashing.  Values are hashed with xxh3 over their tag and payload so the
// results are stable for the life of a heap object.

func hashWords(words ...uint64) uint64 {
	var buf [32]byte
	b := buf[:0]
	for _, w := range words {
		b = binary.LittleEndian.AppendUint64(b, w)
	}
	return xxh3.Hash(b)
}

func hashString(s string) uint64 {
	return xxh3.HashString(s)
}

func sxhashEq(v Value) uint64 {
	return hashWords(uint64(v.tag), v.data)
}

func (rt *Runtime) sxhashEql(v Value) uint64 {
	if v.tag == TagBigInt {
		return xxh3.Hash(rt.BigIntVal(v).Bytes()) ^ uint64(rt.BigIntVal(v).Sign()+1)
	}
	return sxhashEq(v)
}

// Bounds on how much of a structure sxhash-equal examines.
const (
	sxhashMaxDepth = 3
	sxhashMaxLen   = 7
)

func (rt *Runtime) sxhashEqual(v Value) uint64 {
	return rt.sxhashDepth(v, 0)
}

func (rt *Runtime) sxhashDepth(v Value, depth int) uint64 {
	if depth > sxhashMaxDepth {
		return 0
	}
	switch v.tag {
	case TagString:
		return hashString(rt.StringVal(v))
	case TagFloat:
		x := v.FloatVal()
		if x == 0 {
			// 0.0 and -0.0 are not equal but hash alike.
			x = 0
		}
		if math.IsNaN(x) {
			return hashWords(uint64(TagFloat), v.data)
		}
		return hashWords(uint64(TagFloat), math.Float64bits(x))
	case TagCons:
		h := uint64(TagCons)
		n := 0
		for ; v.IsCons() && n < sxhashMaxLen; v = rt.Cdr(v) {
			h = hashWords(h, rt.sxhashDepth(rt.Car(v), depth+1))
			n++
		}
		if !v.IsNil() && n < sxhashMaxLen {
			h = hashWords(h, rt.sxhashDepth(v, depth+1))
		}
		return h
	case TagVector, TagRecord:
		items := rt.Items(v)
		h := hashWords(uint64(v.tag), uint64(len(items)))
		for i, x := range items {
			if i >= sxhashMaxLen {
				break
			}
			h = hashWords(h, rt.sxhashDepth(x, depth+1))
		}
		return h
	}
	return rt.sxhashEql(v)
}

func hashValue(h uint64) Value {
	return Int(int64(h >> 2))
}

func builtinSxhashEq(c *Context, args []Value) (Value, error) {
	return hashValue(sxhashEq(args[0])), nil
}

func builtinSxhashEql(c *Context, args []Value) (Value, error) {
	return hashValue(c.rt.sxhashEql(args[0])), nil
}

func builtinSxhashEqual(c *Context, args []Value) (Value, error) {
	return hashValue(c.rt.sxhashEqual(args[0])), nil
}
