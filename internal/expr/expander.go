package expr

import (
	"strings"

	"github.com/buildcore/engine/internal/builderrors"
	"github.com/buildcore/engine/internal/items"
)

// Binding supplies the values an Expander needs to resolve references
// within one bucket (spec §4.2 "Bucket contract"): property lookups, the
// restricted item list for types that participate in batching, and the
// unrestricted (full) list for types that do not.
type Binding interface {
	// Property returns a property's value and whether it is defined.
	Property(name string) (string, bool)
	// BucketItems returns the items of itemType belonging to this bucket
	// and whether itemType participates in batching for this binding. When
	// ok is false the caller should use FullList instead.
	BucketItems(itemType string) (list []*items.Item, ok bool)
	// FullList returns every item of itemType, ignoring bucket membership.
	FullList(itemType string) []*items.Item
	// UnqualifiedMeta returns the bucket-scoped value of an unqualified
	// %(M) reference, and whether M took part in this bucket's reference
	// extraction (spec §4.2 step 2). A metadata name never consumed during
	// partitioning resolves to empty even if the bucket's driving item
	// happens to carry it under that name (spec §9 seed scenario 1: an
	// unqualified %(Extension) outside the batching set expands empty).
	UnqualifiedMeta(name string) (value string, ok bool)
}

// Expander expands $(P), @(T), %(T.M), transforms, and separator forms
// against a Binding, implementing the bucket contract's Expander (spec
// §4.2). Grounded on the teacher's internal/query/evaluator.go, which
// likewise turns a small parsed AST into concrete values against a runtime
// binding (there: an Issue; here: a Binding).
type Expander struct {
	Binding Binding
}

// NewExpander constructs an Expander bound to b.
func NewExpander(b Binding) *Expander { return &Expander{Binding: b} }

// Expand parses and expands expression in one pass.
func (e *Expander) Expand(expression string) (string, error) {
	nodes, err := Parse(expression)
	if err != nil {
		return "", builderrors.Wrap(builderrors.KindInvalidExpression, err, "parsing %q", expression)
	}
	if err := CheckItemVectorConcatenation(nodes); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case Literal:
			b.WriteString(v.Text)
		case Reference:
			s, err := e.expandRef(v)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
	}
	return Unescape(b.String()), nil
}

func (e *Expander) expandRef(r Reference) (string, error) {
	switch r.Kind {
	case RefProperty:
		v, _ := e.Binding.Property(r.PropertyName)
		return v, nil
	case RefMetadataUnqualified:
		return e.expandUnqualifiedMetadata(r)
	case RefMetadataQualified:
		return e.expandQualifiedMetadata(r)
	case RefItemList:
		return e.expandItemList(r)
	default:
		return "", nil
	}
}

func (e *Expander) expandQualifiedMetadata(r Reference) (string, error) {
	list, participates := e.Binding.BucketItems(r.ItemType)
	if !participates {
		list = e.Binding.FullList(r.ItemType)
	}
	if len(list) == 0 {
		return "", nil
	}
	v, _ := items.ResolveMetadata(list[0], r.MetaName)
	return v, nil
}

// expandUnqualifiedMetadata resolves a bare %(M) through the binding's
// bucket-scoped answer rather than by re-deriving it from whichever @(T)
// references happen to appear in this particular expression: the set of
// item types and metadata names that drove partitioning is a property of
// the whole parameter list the Batching Engine was given, not of any one
// expanded expression (spec §4.2 step 2).
func (e *Expander) expandUnqualifiedMetadata(r Reference) (string, error) {
	v, ok := e.Binding.UnqualifiedMeta(r.MetaName)
	if !ok {
		return "", nil
	}
	return v, nil
}

func (e *Expander) expandItemList(r Reference) (string, error) {
	list, participates := e.Binding.BucketItems(r.ItemType)
	if !participates {
		list = e.Binding.FullList(r.ItemType)
	}
	sep := ";"
	if r.HasSeparator {
		sep = r.Separator
	}
	parts := make([]string, 0, len(list))
	for _, it := range list {
		if r.HasTransform {
			s, err := e.applyTransform(it, r.Transform)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
			continue
		}
		parts = append(parts, it.EvaluatedInclude())
	}
	return strings.Join(parts, sep), nil
}

// applyTransform expands the transform body ("'%(X)'" or similar literal
// with embedded %() references) against a single item's own metadata,
// matching @(T->'%(X)') semantics. Transform bodies never participate in
// batching (spec §4.2 step 1) — their %() references resolve purely
// against it, not against the bucket binding.
func (e *Expander) applyTransform(it *items.Item, transform string) (string, error) {
	body := strings.Trim(strings.TrimSpace(transform), "'\"")
	nodes, err := Parse(body)
	if err != nil {
		return "", builderrors.Wrap(builderrors.KindInvalidExpression, err, "parsing transform %q", transform)
	}
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case Literal:
			b.WriteString(v.Text)
		case Reference:
			if v.Kind == RefMetadataUnqualified || v.Kind == RefMetadataQualified {
				val, _ := items.ResolveMetadata(it, v.MetaName)
				b.WriteString(val)
			}
		}
	}
	return b.String(), nil
}

// CheckItemVectorConcatenation rejects an item-vector reference directly
// adjacent to other text within a single-value context (spec §6 error
// policies: "Concatenating an item vector with adjacent text (@(T)$(x)) in
// a single-vector context is illegal"). Separator forms remain legal.
func CheckItemVectorConcatenation(nodes []Node) error {
	for i, n := range nodes {
		r, ok := n.(Reference)
		if !ok || r.Kind != RefItemList {
			continue
		}
		if len(nodes) == 1 {
			continue // the whole expression is just @(T): legal.
		}
		if i > 0 {
			if _, isLit := nodes[i-1].(Literal); isLit && nodes[i-1].(Literal).Text != "" {
				return builderrors.New(builderrors.KindInvalidExpression, "item vector %q concatenated with adjacent text", r.Raw)
			}
			if prevRef, isRef := nodes[i-1].(Reference); isRef && prevRef.Kind != RefItemList {
				return builderrors.New(builderrors.KindInvalidExpression, "item vector %q concatenated with adjacent reference", r.Raw)
			}
		}
		if i < len(nodes)-1 {
			if lit, isLit := nodes[i+1].(Literal); isLit && lit.Text != "" {
				return builderrors.New(builderrors.KindInvalidExpression, "item vector %q concatenated with adjacent text", r.Raw)
			}
			if nextRef, isRef := nodes[i+1].(Reference); isRef && nextRef.Kind != RefItemList {
				return builderrors.New(builderrors.KindInvalidExpression, "item vector %q concatenated with adjacent reference", r.Raw)
			}
		}
	}
	return nil
}
