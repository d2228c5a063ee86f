package applier

import "testing"

func TestParseDocumentsSubstitutesTemplateVars(t *testing.T) {
	raw := "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: {{ .Name }}\n  namespace: {{ .Namespace }}\n"
	docs, err := ParseDocuments(raw, TemplateVars{"Name": "hello-canary", "Namespace": "apps"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 document, got %d", len(docs))
	}
	if docs[0].GetName() != "hello-canary" {
		t.Errorf("want name hello-canary, got %s", docs[0].GetName())
	}
	if docs[0].GetNamespace() != "apps" {
		t.Errorf("want namespace apps, got %s", docs[0].GetNamespace())
	}
}

func TestParseDocumentsMultiDocumentYAML(t *testing.T) {
	raw := "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: a\n---\napiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: b\n"
	docs, err := ParseDocuments(raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 documents, got %d", len(docs))
	}
}

func TestParseDocumentsSkipsEmptyDocuments(t *testing.T) {
	raw := "---\napiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: only\n---\n"
	docs, err := ParseDocuments(raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 document, got %d", len(docs))
	}
}

func TestSuggestNamespacePicksClosest(t *testing.T) {
	got := SuggestNamespace("prod", []string{"production", "staging", "development"})
	if got != "production" {
		t.Errorf("want production, got %s", got)
	}
}

func TestSuggestNamespaceEmptyActual(t *testing.T) {
	if got := SuggestNamespace("prod", nil); got != "" {
		t.Errorf("want empty suggestion, got %s", got)
	}
}
