package biome

import (
	"fmt"
	"time"

	"github.com/jward/biome/internal/history"
	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/store"
	"github.com/jward/biome/internal/tree"
	"github.com/jward/biome/internal/version"
)

// Payloads are the CBOR shapes of buffer records and keyframe values.

type modulePayload struct {
	Name string
}

type symbolPayload struct {
	Path      []string
	Kind      string
	Namespace ModuleIndex
	Stem      uint32
	Leaf      uint32
}

type articlePayload struct {
	Path   []string
	Module ModuleIndex
	Stem   uint32
	Leaf   uint32
}

type symbolMetadataPayload struct {
	Role         RoleKind
	Scope        SymbolIndex
	Conformances []SymbolIndex
	Superclasses []SymbolIndex
	Overrides    []SymbolIndex
	Implements   []SymbolIndex
}

func encodeSymbolMetadata(m *SymbolMetadata) *symbolMetadataPayload {
	if m == nil {
		return nil
	}
	scope, _ := m.Role.Scope()
	return &symbolMetadataPayload{
		Role:         m.Role.Kind(),
		Scope:        scope,
		Conformances: m.Conformances,
		Superclasses: m.Superclasses,
		Overrides:    m.Overrides,
		Implements:   m.Implements,
	}
}

func decodeSymbolMetadata(p *symbolMetadataPayload) (*SymbolMetadata, error) {
	if p == nil {
		return nil, nil
	}
	m := &SymbolMetadata{
		Conformances: p.Conformances,
		Superclasses: p.Superclasses,
		Overrides:    p.Overrides,
		Implements:   p.Implements,
	}
	switch p.Role {
	case RoleTopLevel:
		m.Role = TopLevel()
	case RoleMember:
		m.Role = MemberOf(p.Scope)
	case RoleRequirement:
		m.Role = RequirementOf(p.Scope)
	default:
		return nil, fmt.Errorf("unknown role kind %d", p.Role)
	}
	return m, nil
}

// snapshot captures every package. It holds every branch's writer lock
// until release is called so no revision is half written.
func (e *Engine) snapshot() (*store.Snapshot, func(), error) {
	packages := e.Packages()
	var held []*Branch
	release := func() {
		for _, b := range held {
			b.Release()
		}
	}
	for _, p := range packages {
		for _, b := range p.Branches() {
			if !b.Acquire() {
				release()
				return nil, nil, fmt.Errorf("package %q branch %q: %w", p.Name, b.Name, ErrBranchBusy)
			}
			held = append(held, b)
		}
	}

	snap := &store.Snapshot{CreatedAt: time.Now().UTC()}
	for _, p := range packages {
		sp, err := p.export()
		if err != nil {
			release()
			return nil, nil, err
		}
		snap.Packages = append(snap.Packages, *sp)
	}
	return snap, release, nil
}

func (p *Package) export() (*store.Package, error) {
	sp := &store.Package{
		Index: uint16(p.Index),
		Name:  p.Name,
		Stems: p.interner.Texts(),
	}
	for _, b := range p.Branches() {
		sb := store.Branch{ID: uint32(b.ID), Name: b.Name}
		if b.Fork != nil {
			pb, pr := uint32(b.Fork.Branch), uint32(b.Fork.Revision)
			sb.ParentBranch, sb.ParentRevision = &pb, &pr
		}
		for _, rev := range b.Revisions() {
			sr := store.Revision{
				Number:       uint32(rev.Number),
				RingModules:  rev.Ring.Modules,
				RingSymbols:  rev.Ring.Symbols,
				RingArticles: rev.Ring.Articles,
				Hash:         rev.Hash,
				Tag:          rev.Tag.String(),
			}
			for _, pkg := range rev.Pins.Packages() {
				pin := rev.Pins[pkg]
				sr.Pins = append(sr.Pins, store.Pin{Package: uint16(pkg), Branch: uint32(pin.Branch), Revision: uint32(pin.Revision)})
			}
			sb.Revisions = append(sb.Revisions, sr)
		}
		sp.Branches = append(sp.Branches, sb)

		if err := p.exportBuffers(sp, b); err != nil {
			return nil, fmt.Errorf("export %q branch %q: %w", p.Name, b.Name, err)
		}
		if err := exportRoutes(sp, b); err != nil {
			return nil, fmt.Errorf("export %q branch %q: %w", p.Name, b.Name, err)
		}
	}
	if err := p.exportKeyframes(sp); err != nil {
		return nil, fmt.Errorf("export %q: %w", p.Name, err)
	}
	return sp, nil
}

func (p *Package) exportBuffers(sp *store.Package, b *Branch) error {
	for index, rec := range b.Modules.Slice(b.Modules.End()).All() {
		payload, err := store.Encode(modulePayload{Name: rec.Value.Name})
		if err != nil {
			return err
		}
		sp.Modules = append(sp.Modules, store.Entity{
			Branch:         uint32(b.ID),
			Offset:         index.Offset,
			ExternalID:     rec.ID,
			CulturePackage: uint16(rec.Culture),
			Payload:        payload,
		})
	}
	for index, rec := range b.Symbols.Slice(b.Symbols.End()).All() {
		payload, err := store.Encode(symbolPayload{
			Path:      rec.Value.Path,
			Kind:      rec.Value.Kind,
			Namespace: rec.Value.Namespace,
			Stem:      uint32(rec.Value.Route.Stem),
			Leaf:      uint32(rec.Value.Route.Leaf),
		})
		if err != nil {
			return err
		}
		sp.Symbols = append(sp.Symbols, store.Entity{
			Branch:         uint32(b.ID),
			Offset:         index.Offset,
			ExternalID:     rec.ID,
			CulturePackage: uint16(rec.Culture.Culture),
			CultureOffset:  rec.Culture.Offset,
			Payload:        payload,
		})
	}
	for index, rec := range b.Articles.Slice(b.Articles.End()).All() {
		payload, err := store.Encode(articlePayload{
			Path:   rec.Value.Path,
			Module: rec.Value.Route.Module,
			Stem:   uint32(rec.Value.Route.Stem),
			Leaf:   uint32(rec.Value.Route.Leaf),
		})
		if err != nil {
			return err
		}
		sp.Articles = append(sp.Articles, store.Entity{
			Branch:         uint32(b.ID),
			Offset:         index.Offset,
			ExternalID:     rec.ID,
			CulturePackage: uint16(rec.Culture.Culture),
			CultureOffset:  rec.Culture.Offset,
			Payload:        payload,
		})
	}
	return nil
}

func exportRoutes(sp *store.Package, b *Branch) error {
	for _, entry := range b.Routes.Entries() {
		target, err := store.Encode(entry.Composite)
		if err != nil {
			return err
		}
		sp.Routes = append(sp.Routes, storeRoute(b.ID, entry.Route, store.RouteSymbol, target, entry.Since))
	}
	for _, entry := range b.Routes.ArticleEntries() {
		target, err := store.Encode(entry.Article)
		if err != nil {
			return err
		}
		sp.Routes = append(sp.Routes, storeRoute(b.ID, entry.Route, store.RouteArticle, target, entry.Since))
	}
	return nil
}

func storeRoute(branch BranchID, r Route, kind string, target []byte, since Revision) store.Route {
	return store.Route{
		Branch:        uint32(branch),
		ModulePackage: uint16(r.Module.Culture),
		ModuleOffset:  r.Module.Offset,
		Stem:          uint32(r.Stem),
		Leaf:          uint32(r.Leaf),
		Kind:          kind,
		Target:        target,
		Since:         uint32(since),
	}
}

func (p *Package) exportKeyframes(sp *store.Package) error {
	if err := exportField(sp, FieldModule, p.fields.modules, func(v *ModuleMetadata) any { return v }); err != nil {
		return err
	}
	if err := exportField(sp, FieldSymbol, p.fields.symbols, func(v *SymbolMetadata) any { return encodeSymbolMetadata(v) }); err != nil {
		return err
	}
	if err := exportField(sp, FieldDeclaration, p.fields.declarations, func(v Declaration) any { return string(v) }); err != nil {
		return err
	}
	if err := exportField(sp, FieldDocumentation, p.fields.documentation, func(v string) any { return v }); err != nil {
		return err
	}
	return exportField(sp, FieldArticle, p.fields.articles, func(v *ArticleBody) any { return v })
}

// exportField writes every chain of one field oldest first.
func exportField[K comparable, V any](sp *store.Package, field string, h *history.History[K, V], payload func(V) any) error {
	for _, entry := range h.Entries() {
		key, err := store.Encode(entry.Key)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		for seq := range entry.Chain {
			kf := entry.Chain[len(entry.Chain)-1-seq]
			value, err := store.Encode(payload(kf.Value))
			if err != nil {
				return fmt.Errorf("field %s: %w", field, err)
			}
			sp.Keyframes = append(sp.Keyframes, store.Keyframe{
				Field:  field,
				Branch: uint32(entry.Branch),
				Key:    key,
				Seq:    seq,
				Since:  uint32(kf.Since),
				Value:  value,
			})
		}
	}
	return nil
}

// restore rebuilds the engine from a snapshot. Packages are replaced only
// once every package restored cleanly.
func (e *Engine) restore(snap *store.Snapshot) error {
	packages := make([]*Package, 0, len(snap.Packages))
	byName := make(map[string]*Package, len(snap.Packages))
	for i, sp := range snap.Packages {
		if int(sp.Index) != i {
			return fmt.Errorf("package %q: index %d out of sequence", sp.Name, sp.Index)
		}
		p := newPackage(PackageIndex(sp.Index), sp.Name, e.logger)
		if err := p.restore(&sp); err != nil {
			return fmt.Errorf("package %q: %w", sp.Name, err)
		}
		packages = append(packages, p)
		byName[p.Name] = p
	}
	for _, p := range packages {
		for _, b := range p.Branches() {
			for _, rev := range b.Revisions() {
				for _, dep := range rev.Pins.Packages() {
					if int(dep) >= len(packages) {
						return fmt.Errorf("package %q: pin of unknown package %d", p.Name, dep)
					}
					packages[dep].addConsumer(rev.Pins[dep], Consumer{Package: p.Index, Version: b.Version(rev.Number)})
				}
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.packages = packages
	e.byName = byName
	return nil
}

func (p *Package) restore(sp *store.Package) error {
	if err := p.interner.Restore(sp.Stems); err != nil {
		return err
	}

	modules := groupByBranch(sp.Modules)
	symbols := groupByBranch(sp.Symbols)
	articles := groupByBranch(sp.Articles)
	for _, sb := range sp.Branches {
		var from *Version
		if sb.ParentBranch != nil && sb.ParentRevision != nil {
			from = &Version{Branch: BranchID(*sb.ParentBranch), Revision: Revision(*sb.ParentRevision)}
		}
		b, err := p.tree.Fork(from, sb.Name)
		if err != nil {
			return err
		}
		if uint32(b.ID) != sb.ID {
			return fmt.Errorf("branch %q: restored as %d, saved as %d", sb.Name, b.ID, sb.ID)
		}
		if err := p.restoreBuffers(b, modules[sb.ID], symbols[sb.ID], articles[sb.ID]); err != nil {
			return fmt.Errorf("branch %q: %w", sb.Name, err)
		}
		for _, sr := range sb.Revisions {
			rev := tree.Revision{
				Number: Revision(sr.Number),
				Ring:   tree.Ring{Modules: sr.RingModules, Symbols: sr.RingSymbols, Articles: sr.RingArticles},
				Hash:   sr.Hash,
				Tag:    ParseTag(sr.Tag),
				Pins:   make(Pins, len(sr.Pins)),
			}
			for _, pin := range sr.Pins {
				rev.Pins[PackageIndex(pin.Package)] = Version{Branch: BranchID(pin.Branch), Revision: Revision(pin.Revision)}
			}
			if err := b.Restore(rev); err != nil {
				return err
			}
			p.registerTag(rev.Tag, b.Version(rev.Number))
		}
	}

	for _, r := range sp.Routes {
		if err := p.restoreRoute(r); err != nil {
			return err
		}
	}
	for _, k := range sp.Keyframes {
		if err := p.restoreKeyframe(k); err != nil {
			return fmt.Errorf("keyframe %s on branch %d: %w", k.Field, k.Branch, err)
		}
	}
	return nil
}

func groupByBranch(entities []store.Entity) map[uint32][]store.Entity {
	out := make(map[uint32][]store.Entity)
	for _, e := range entities {
		out[e.Branch] = append(out[e.Branch], e)
	}
	return out
}

func (p *Package) restoreBuffers(b *Branch, modules, symbols, articles []store.Entity) error {
	for _, e := range modules {
		var payload modulePayload
		if err := store.Decode(e.Payload, &payload); err != nil {
			return err
		}
		index, _ := b.Modules.Insert(e.ExternalID, PackageIndex(e.CulturePackage), func(ModuleIndex) tree.Module {
			return tree.Module{Name: payload.Name}
		})
		if index.Offset != e.Offset {
			return fmt.Errorf("module %s: restored at offset %d, saved at %d", e.ExternalID, index.Offset, e.Offset)
		}
	}
	for _, e := range symbols {
		var payload symbolPayload
		if err := store.Decode(e.Payload, &payload); err != nil {
			return err
		}
		culture := ModuleIndex{Culture: PackageIndex(e.CulturePackage), Offset: e.CultureOffset}
		index, _ := b.Symbols.Insert(e.ExternalID, culture, func(SymbolIndex) tree.Symbol {
			return tree.Symbol{
				Path:      payload.Path,
				Kind:      payload.Kind,
				Namespace: payload.Namespace,
				Route:     Route{Module: payload.Namespace, Stem: route.Stem(payload.Stem), Leaf: route.Leaf(payload.Leaf)},
			}
		})
		if index.Offset != e.Offset {
			return fmt.Errorf("symbol %s: restored at offset %d, saved at %d", e.ExternalID, index.Offset, e.Offset)
		}
	}
	for _, e := range articles {
		var payload articlePayload
		if err := store.Decode(e.Payload, &payload); err != nil {
			return err
		}
		culture := ModuleIndex{Culture: PackageIndex(e.CulturePackage), Offset: e.CultureOffset}
		index, _ := b.Articles.Insert(e.ExternalID, culture, func(ArticleIndex) tree.Article {
			return tree.Article{
				Path:  payload.Path,
				Route: Route{Module: payload.Module, Stem: route.Stem(payload.Stem), Leaf: route.Leaf(payload.Leaf)},
			}
		})
		if index.Offset != e.Offset {
			return fmt.Errorf("article %s: restored at offset %d, saved at %d", e.ExternalID, index.Offset, e.Offset)
		}
	}
	return nil
}

func (p *Package) restoreRoute(sr store.Route) error {
	b, err := p.tree.Branch(BranchID(sr.Branch))
	if err != nil {
		return err
	}
	r := Route{
		Module: ModuleIndex{Culture: PackageIndex(sr.ModulePackage), Offset: sr.ModuleOffset},
		Stem:   route.Stem(sr.Stem),
		Leaf:   route.Leaf(sr.Leaf),
	}
	switch sr.Kind {
	case store.RouteSymbol:
		var c Composite
		if err := store.Decode(sr.Target, &c); err != nil {
			return err
		}
		b.Routes.Insert(r, c, Revision(sr.Since))
	case store.RouteArticle:
		var a ArticleIndex
		if err := store.Decode(sr.Target, &a); err != nil {
			return err
		}
		b.Routes.InsertArticle(r, a, Revision(sr.Since))
	default:
		return fmt.Errorf("route %s: unknown kind %q", r, sr.Kind)
	}
	return nil
}

func (p *Package) restoreKeyframe(k store.Keyframe) error {
	branch := BranchID(k.Branch)
	since := Revision(k.Since)
	switch k.Field {
	case FieldModule:
		return restoreField(p.fields.modules, branch, since, k, func(v *ModuleMetadata) (*ModuleMetadata, error) { return v, nil })
	case FieldSymbol:
		return restoreField(p.fields.symbols, branch, since, k, decodeSymbolMetadata)
	case FieldDeclaration:
		return restoreField(p.fields.declarations, branch, since, k, func(v string) (Declaration, error) { return Declaration(v), nil })
	case FieldDocumentation:
		return restoreField(p.fields.documentation, branch, since, k, func(v string) (string, error) { return v, nil })
	case FieldArticle:
		return restoreField(p.fields.articles, branch, since, k, func(v *ArticleBody) (*ArticleBody, error) { return v, nil })
	}
	return fmt.Errorf("unknown field %q", k.Field)
}

// restoreField decodes a keyframe's key and stored value P and appends the
// converted value to the branch's chain.
func restoreField[K comparable, V, P any](h *history.History[K, V], branch version.Branch, since version.Revision, k store.Keyframe, convert func(P) (V, error)) error {
	var key K
	if err := store.Decode(k.Key, &key); err != nil {
		return err
	}
	var stored P
	if err := store.Decode(k.Value, &stored); err != nil {
		return err
	}
	value, err := convert(stored)
	if err != nil {
		return err
	}
	h.Restore(branch, key, since, value)
	return nil
}
