package policy

import "testing"

func rule(name string) Rule {
	return Rule{Name: name, MergeAccessLevel: Maintainer, PushAccessLevel: Maintainer}
}

func TestMatchFirstRuleWins(t *testing.T) {
	rules := []Rule{rule("main"), rule("*")}

	got, ok := Match(rules, "main")
	if !ok {
		t.Fatal("expected a match for main")
	}
	if got.Name != "main" {
		t.Errorf("expected the literal rule to win, got %q", got.Name)
	}

	got, ok = Match(rules, "develop")
	if !ok {
		t.Fatal("expected the catch-all to match develop")
	}
	if got.Name != "*" {
		t.Errorf("expected the catch-all rule, got %q", got.Name)
	}
}

func TestMatchLiteralIsExact(t *testing.T) {
	rules := []Rule{rule("main")}

	if _, ok := Match(rules, "main-backup"); ok {
		t.Error("literal rule matched a prefixed name")
	}
	if _, ok := Match(rules, "domain"); ok {
		t.Error("literal rule matched a substring occurrence")
	}
	if _, ok := Match(rules, "MAIN"); ok {
		t.Error("matching should be case-sensitive")
	}
}

func TestMatchWildcards(t *testing.T) {
	tests := []struct {
		pattern   string
		candidate string
		want      bool
	}{
		{"v*", "v1.2.3", true},
		{"v*", "v", true},
		{"v*", "rev1", false},
		{"v*", "V1.2.3", false},
		{"release/*", "release/1.0", true},
		{"release/*", "release/2024/hotfix", true},
		{"release/*", "release", false},
		{"*-stable", "1.4-stable", true},
		{"*-stable", "stable", false},
	}
	for _, tt := range tests {
		rules := []Rule{rule(tt.pattern)}
		_, ok := Match(rules, tt.candidate)
		if ok != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.candidate, ok, tt.want)
		}
	}
}

func TestMatchNoRules(t *testing.T) {
	if _, ok := Match(nil, "main"); ok {
		t.Error("expected no match against an empty rule list")
	}
}
