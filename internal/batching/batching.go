// Package batching implements §4.2: given a set of expressions drawn from a
// task or target's parameters, partition the item lists those expressions
// reference into an ordered sequence of execution buckets. Grounded on the
// teacher's internal/query/evaluator.go, which likewise turns a parsed
// expression into something a caller can drive repeatedly against different
// runtime state (there: per-Issue predicate evaluation; here: per-bucket
// item/metadata binding).
package batching

import (
	"strings"

	"github.com/buildcore/engine/internal/builderrors"
	"github.com/buildcore/engine/internal/expr"
	"github.com/buildcore/engine/internal/items"
	"github.com/buildcore/engine/internal/lookup"
)

// dimKind distinguishes the two shapes of metadata reference that can drive
// a bucket key (spec §4.2 step 3).
type dimKind int

const (
	dimQualified dimKind = iota
	dimUnqualified
)

// dim is one coordinate of a bucket's key tuple.
type dim struct {
	kind dimKind
	typ  string // only for dimQualified
	name string
}

// Bucket is one partition's worth of items plus the metadata binding that
// drove it (spec §4.2 "Bucket contract"). It implements expr.Binding so it
// can be handed straight to expr.NewExpander.
type Bucket struct {
	lk       *lookup.Lookup
	byType   map[string][]*items.Item // only participating types are keyed
	unqual   map[string]string        // resolved value per participating unqualified name
	Expander *expr.Expander
}

// Items returns the items of itemType belonging to this bucket, or nil if
// itemType did not participate in the partition that produced it.
func (b *Bucket) Items(itemType string) []*items.Item { return b.byType[itemType] }

// Participates reports whether itemType drove this partition.
func (b *Bucket) Participates(itemType string) bool {
	_, ok := b.byType[itemType]
	return ok
}

func (b *Bucket) Property(name string) (string, bool) { return b.lk.GetProperty(name) }

func (b *Bucket) BucketItems(itemType string) ([]*items.Item, bool) {
	list, ok := b.byType[itemType]
	return list, ok
}

func (b *Bucket) FullList(itemType string) []*items.Item { return b.lk.GetItems(itemType) }

func (b *Bucket) UnqualifiedMeta(name string) (string, bool) {
	v, ok := b.unqual[strings.ToLower(name)]
	return v, ok
}

// Partition implements the algorithm of spec §4.2. expressions is the full
// set of parameter strings a task or target was given; batching keys are
// derived from references across all of them together, not from any one
// expression in isolation.
func Partition(lk *lookup.Lookup, expressions []string) ([]*Bucket, error) {
	var allNodes []expr.Node
	for _, e := range expressions {
		nodes, err := expr.Parse(e)
		if err != nil {
			return nil, builderrors.Wrap(builderrors.KindInvalidExpression, err, "parsing %q", e)
		}
		allNodes = append(allNodes, nodes...)
	}

	keyTypes, dims := extractKeysAndDims(allNodes)

	// Unqualified resolution (step 2): every unqualified dim must be legal
	// against keyTypes' items before we build anything.
	for _, d := range dims {
		if d.kind != dimUnqualified {
			continue
		}
		if len(keyTypes) == 0 {
			return nil, builderrors.New(builderrors.KindInvalidMetadataReference, "unqualified metadata %%(%s) has no consumed item type in scope", d.name)
		}
		if err := checkUnqualifiedLegal(lk, keyTypes, d.name); err != nil {
			return nil, err
		}
	}

	// Degenerate case: nothing drives a partition at all (spec §4.2 step 6):
	// one bucket, empty binding.
	if len(keyTypes) == 0 && len(dims) == 0 {
		empty := &Bucket{byType: map[string][]*items.Item{}, unqual: map[string]string{}}
		return wireExpanders(lk, []*Bucket{empty}), nil
	}

	// universe: every item of every driving type, in declaration order.
	var universe []*items.Item
	for _, t := range keyTypes {
		universe = append(universe, lk.GetItems(t)...)
	}

	// Degenerate case: a driving type is referenced but contributes no
	// items (e.g. Outputs='%(T.Identity)' with no T items) -> zero buckets.
	if len(universe) == 0 {
		return nil, nil
	}

	type built struct {
		byType map[string][]*items.Item
		unqual map[string]string
	}
	index := map[string]*built{}
	var sequence []*built

	for _, it := range universe {
		keyParts := make([]string, len(dims))
		for i, d := range dims {
			keyParts[i] = dimValue(it, d)
		}
		key := strings.Join(keyParts, "\x00")

		bkt, ok := index[key]
		if !ok {
			bkt = &built{byType: map[string][]*items.Item{}, unqual: map[string]string{}}
			for _, t := range keyTypes {
				bkt.byType[t] = nil
			}
			for i, d := range dims {
				if d.kind == dimUnqualified {
					bkt.unqual[strings.ToLower(d.name)] = keyParts[i]
				}
			}
			index[key] = bkt
			sequence = append(sequence, bkt)
		}
		bkt.byType[it.ItemType()] = append(bkt.byType[it.ItemType()], it)
	}

	buckets := make([]*Bucket, len(sequence))
	for i, bkt := range sequence {
		buckets[i] = &Bucket{lk: lk, byType: bkt.byType, unqual: bkt.unqual}
	}
	return wireExpanders(lk, buckets), nil
}

func wireExpanders(lk *lookup.Lookup, buckets []*Bucket) []*Bucket {
	for _, b := range buckets {
		b.lk = lk
		b.Expander = expr.NewExpander(b)
	}
	return buckets
}

// extractKeysAndDims walks nodes once, collecting:
//   - keyTypes: item types that drive the partition, in first-seen order —
//     every type named by a plain @(T) (transforms excluded, spec §4.2 step
//     1) plus every type named by a qualified %(T.M).
//   - dims: the ordered, deduplicated list of key coordinates (qualified
//     (T,M) pairs and unqualified M names) that make up a bucket's key.
func extractKeysAndDims(nodes []expr.Node) ([]string, []dim) {
	var keyTypes []string
	seenType := map[string]bool{}
	addType := func(t string) {
		if !seenType[t] {
			seenType[t] = true
			keyTypes = append(keyTypes, t)
		}
	}

	var dims []dim
	seenDim := map[string]bool{}
	addDim := func(d dim) {
		k := dimKeyOf(d)
		if !seenDim[k] {
			seenDim[k] = true
			dims = append(dims, d)
		}
	}

	for _, n := range nodes {
		r, ok := n.(expr.Reference)
		if !ok {
			continue
		}
		switch r.Kind {
		case expr.RefItemList:
			if !r.HasTransform {
				addType(r.ItemType)
			}
		case expr.RefMetadataQualified:
			addType(r.ItemType)
			addDim(dim{kind: dimQualified, typ: r.ItemType, name: r.MetaName})
		case expr.RefMetadataUnqualified:
			addDim(dim{kind: dimUnqualified, name: r.MetaName})
		}
	}
	return keyTypes, dims
}

func dimKeyOf(d dim) string {
	if d.kind == dimQualified {
		return "q:" + strings.ToLower(d.typ) + "." + strings.ToLower(d.name)
	}
	return "u:" + strings.ToLower(d.name)
}

// dimValue resolves one key coordinate for it, collapsing empty and missing
// values to the same "" equivalence class (spec §4.2 step 3). A qualified
// dimension that does not apply to it's own type contributes a constant
// placeholder rather than varying with it.
func dimValue(it *items.Item, d dim) string {
	if d.kind == dimQualified && !strings.EqualFold(it.ItemType(), d.typ) {
		return ""
	}
	v, _ := items.ResolveMetadata(it, d.name)
	return v
}

// checkUnqualifiedLegal implements spec §4.2 step 2(b): every item of every
// type in keyTypes must either explicitly define name, or name must be
// missing-but-equivalent-to-empty across the whole group — legal as long as
// no item that lacks the key outright coexists with one that has it set to
// a genuinely non-empty value.
func checkUnqualifiedLegal(lk *lookup.Lookup, keyTypes []string, name string) error {
	anyMissing := false
	anyNonEmpty := false
	for _, t := range keyTypes {
		for _, it := range lk.GetItems(t) {
			v, defined := items.ResolveMetadata(it, name)
			if !defined {
				anyMissing = true
				continue
			}
			if v != "" {
				anyNonEmpty = true
			}
		}
	}
	if anyMissing && anyNonEmpty {
		return builderrors.New(builderrors.KindInvalidMetadataReference, "unqualified metadata %%(%s) is not defined on every consumed item", name)
	}
	return nil
}
