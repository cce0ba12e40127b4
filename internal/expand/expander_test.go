package expand

import (
	"reflect"
	"testing"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/rules"
)

const testTable = `{
  "source_order": ["manual", "coverage", "codes"],
  "sources": {
    "manual": {
      "patterns": ["\\bmanual\\b", "\\bchapter\\b", "\\bguideline\\b", "\\bhandbook\\b",
                   "\\bpublication\\b", "\\btransmittal\\b", "\\bbulletin\\b"],
      "expansion": "policy guidelines manual chapter"
    },
    "coverage": {
      "patterns": ["\\bcover(?:ed|age)?\\b", "\\bcriteria\\b", "\\blcd\\b"],
      "expansion": "coverage determination criteria"
    },
    "codes": {
      "patterns": ["\\bcpt\\b", "\\bhcpcs\\b", "\\bbilling\\s+code\\b"],
      "expansion": "HCPCS CPT billing codes"
    }
  },
  "synonyms": [
    {"pattern": "\\brehab\\b", "expansion": "rehabilitation therapy"},
    {"pattern": "\\bmri\\b", "expansion": "magnetic resonance imaging"}
  ],
  "specialized_source": "coverage",
  "specialized_query_patterns": ["\\bcover(?:ed|age)?\\b"],
  "specialized_topic_patterns": [
    {"pattern": "\\bcardiac\\s+rehab\\b", "expansion": "cardiac rehabilitation program coverage criteria"}
  ],
  "strip_noise_patterns": ["\\bmedicare\\b"],
  "strip_filler_patterns": ["\\b(?:is|the|what|by|for|per|does)\\b"],
  "default_relevance": {"manual": 0.5, "coverage": 0.3, "codes": 0.2}
}`

func testRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return rs
}

func TestExpandOriginalFirst(t *testing.T) {
	e := New(testRules(t), 6)
	exp := e.Expand("Is cardiac rehab covered per the manual?")

	if len(exp.Variants) == 0 {
		t.Fatal("no variants")
	}
	v := exp.Variants[0]
	if v.Text != "Is cardiac rehab covered per the manual?" {
		t.Errorf("Variants[0].Text = %q, want original query", v.Text)
	}
	if v.Weight != 1.0 || v.TargetSource != "" || v.Kind != models.VariantOriginal {
		t.Errorf("Variants[0] = %+v, want original with weight 1.0 and no target", v)
	}
}

func TestExpandSourceVariants(t *testing.T) {
	e := New(testRules(t), 6)
	exp := e.Expand("Is cardiac rehab covered per the manual?")

	// coverage saturates its threshold (1 of 3 patterns), manual is at half
	// (1 of 7, threshold 2), so coverage must come first.
	if got, want := exp.RelevantSources(), []string{"coverage", "manual"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("RelevantSources() = %v, want %v", got, want)
	}
	if exp.Relevance["coverage"] != 1.0 {
		t.Errorf("Relevance[coverage] = %v, want 1.0", exp.Relevance["coverage"])
	}
	if exp.Relevance["manual"] != 0.5 {
		t.Errorf("Relevance[manual] = %v, want 0.5", exp.Relevance["manual"])
	}

	var sourceVariants []models.QueryVariant
	for _, v := range exp.Variants {
		if v.Kind == models.VariantSource {
			sourceVariants = append(sourceVariants, v)
		}
	}
	if len(sourceVariants) != 2 {
		t.Fatalf("got %d source variants, want 2: %+v", len(sourceVariants), sourceVariants)
	}
	if sourceVariants[0].TargetSource != "coverage" || sourceVariants[1].TargetSource != "manual" {
		t.Errorf("source variant order = [%s %s], want [coverage manual]",
			sourceVariants[0].TargetSource, sourceVariants[1].TargetSource)
	}
	wantText := "Is cardiac rehab covered per the manual? coverage determination criteria"
	if sourceVariants[0].Text != wantText {
		t.Errorf("coverage variant text = %q, want %q", sourceVariants[0].Text, wantText)
	}
	if sourceVariants[0].Weight != 0.8 {
		t.Errorf("source variant weight = %v, want 0.8", sourceVariants[0].Weight)
	}
}

func TestExpandSpecialized(t *testing.T) {
	e := New(testRules(t), 6)
	exp := e.Expand("Is cardiac rehab covered per the manual?")

	if !exp.Specialized {
		t.Fatal("coverage question should be specialized")
	}
	if exp.SpecializedSource != "coverage" {
		t.Errorf("SpecializedSource = %q, want coverage", exp.SpecializedSource)
	}

	byKind := make(map[string]models.QueryVariant)
	for _, v := range exp.Variants {
		byKind[v.Kind] = v
	}

	topic, ok := byKind[models.VariantTopic]
	if !ok {
		t.Fatal("missing topic variant")
	}
	wantTopic := "Is cardiac rehab covered per the manual? cardiac rehabilitation program coverage criteria"
	if topic.Text != wantTopic {
		t.Errorf("topic variant text = %q, want %q", topic.Text, wantTopic)
	}
	if topic.TargetSource != "coverage" {
		t.Errorf("topic variant target = %q, want coverage", topic.TargetSource)
	}

	concept, ok := byKind[models.VariantConcept]
	if !ok {
		t.Fatal("missing concept variant")
	}
	if concept.Text != "cardiac rehab covered manual?" {
		t.Errorf("concept variant text = %q", concept.Text)
	}
	if concept.Weight != 0.5 {
		t.Errorf("concept variant weight = %v, want 0.5", concept.Weight)
	}

	plain := e.Expand("Which manual chapter lists transmittals?")
	if plain.Specialized {
		t.Error("manual lookup should not be specialized")
	}
}

func TestExpandSynonymVariant(t *testing.T) {
	e := New(testRules(t), 6)
	exp := e.Expand("mri rehab criteria")

	var expanded *models.QueryVariant
	for i, v := range exp.Variants {
		if v.Kind == models.VariantExpanded {
			expanded = &exp.Variants[i]
		}
	}
	if expanded == nil {
		t.Fatal("missing expanded variant")
	}
	// Synonym expansions append in table order.
	want := "mri rehab criteria rehabilitation therapy magnetic resonance imaging"
	if expanded.Text != want {
		t.Errorf("expanded text = %q, want %q", expanded.Text, want)
	}
	if expanded.TargetSource != "" {
		t.Errorf("expanded variant should not target a source, got %q", expanded.TargetSource)
	}
}

func TestExpandCapDropsLowestWeightFirst(t *testing.T) {
	// The specialized cardiac rehab query emits 6 variants; capping at 4 must
	// drop concept (0.5) then topic (the later 0.6), never the original.
	e := New(testRules(t), 4)
	exp := e.Expand("Is cardiac rehab covered per the manual?")

	if len(exp.Variants) != 4 {
		t.Fatalf("got %d variants, want 4", len(exp.Variants))
	}
	wantKinds := []string{
		models.VariantOriginal,
		models.VariantSource,
		models.VariantSource,
		models.VariantExpanded,
	}
	for i, want := range wantKinds {
		if exp.Variants[i].Kind != want {
			t.Errorf("Variants[%d].Kind = %q, want %q", i, exp.Variants[i].Kind, want)
		}
	}
}

func TestExpandDefaultRelevanceFallback(t *testing.T) {
	e := New(testRules(t), 6)
	exp := e.Expand("completely unrelated zebra question")

	if len(exp.Variants) != 1 {
		t.Fatalf("got %d variants, want only the original: %+v", len(exp.Variants), exp.Variants)
	}
	want := map[string]float64{"manual": 0.5, "coverage": 0.3, "codes": 0.2}
	if !reflect.DeepEqual(exp.Relevance, want) {
		t.Errorf("Relevance = %v, want default map %v", exp.Relevance, want)
	}
	if got, want := exp.RelevantSources(), []string{"manual", "coverage", "codes"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RelevantSources() = %v, want %v", got, want)
	}
}

func TestExpandDeterministic(t *testing.T) {
	e := New(testRules(t), 6)
	query := "Is cardiac rehab covered per the manual?"

	first := e.Expand(query)
	for i := 0; i < 5; i++ {
		again := e.Expand(query)
		if !reflect.DeepEqual(first.Variants, again.Variants) {
			t.Fatalf("run %d variants differ:\n%+v\nvs\n%+v", i, first.Variants, again.Variants)
		}
		if !reflect.DeepEqual(first.RelevantSources(), again.RelevantSources()) {
			t.Fatalf("run %d relevant sources differ", i)
		}
	}
}
