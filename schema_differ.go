package sqlt

// Diff is the raw and unified-diff view of a single object's
// definition across source and target. Unified is empty when the two
// sides are equal.
type Diff struct {
	RawSource string
	RawTarget string
	Unified   string
}

// DiffClass classifies a Diff for presentation purposes.
type DiffClass int

const (
	DiffNeutral  DiffClass = iota // equal on both sides
	DiffDropped                  // present only on source (would be dropped)
	DiffCreated                  // present only on target (would be created)
	DiffModified                 // present, differing, on both sides
)

// Class reports how a Diff should be colored by a presentation layer:
// equal->neutral, source-only->dropped, target-only->created,
// both-differ->modified.
func (d Diff) Class() DiffClass {
	switch {
	case d.RawSource == d.RawTarget:
		return DiffNeutral
	case d.RawSource == "":
		return DiffCreated
	case d.RawTarget == "":
		return DiffDropped
	default:
		return DiffModified
	}
}

// SchemaDiff maps each ObjectKind to a name -> Diff mapping, covering
// the union of object names present on either side of a
// MigrationMetadata.
type SchemaDiff struct {
	byKind map[ObjectKind]map[string]Diff
}

// Kind returns the name->Diff mapping for kind.
func (s SchemaDiff) Kind(kind ObjectKind) map[string]Diff {
	return s.byKind[kind]
}

// DiffMetadata computes a SchemaDiff over mm: for each ObjectKind, the
// union of names across Source and Target, each compared via
// UnifiedDiff(source, target) with printer applying colorization.
func DiffMetadata(mm MigrationMetadata, printer *SqlPrettyPrinter) SchemaDiff {
	result := SchemaDiff{byKind: make(map[ObjectKind]map[string]Diff, len(allKinds))}
	for _, kind := range allKinds {
		sourceObjs := mm.Source.Objects(kind)
		targetObjs := mm.Target.Objects(kind)
		names := make(map[string]struct{}, len(sourceObjs)+len(targetObjs))
		for name := range sourceObjs {
			names[name] = struct{}{}
		}
		for name := range targetObjs {
			names[name] = struct{}{}
		}
		diffs := make(map[string]Diff, len(names))
		for name := range names {
			sourceSQL := sourceObjs[name]
			targetSQL := targetObjs[name]
			diffs[name] = Diff{
				RawSource: sourceSQL,
				RawTarget: targetSQL,
				Unified:   UnifiedDiff(sourceSQL, targetSQL, printer),
			}
		}
		result.byKind[kind] = diffs
	}
	return result
}
