package models

import (
	"encoding/json"
	"testing"
)

func TestLabelOrdering(t *testing.T) {
	if !(LabelPublic < LabelGeneralizable && LabelGeneralizable < LabelRedact && LabelRedact < LabelReject) {
		t.Fatal("labels are not ordered by restrictiveness")
	}
}

func TestEscalate(t *testing.T) {
	cases := map[SensitivityLabel]SensitivityLabel{
		LabelPublic:        LabelGeneralizable,
		LabelGeneralizable: LabelRedact,
		LabelRedact:        LabelReject,
		LabelReject:        LabelReject,
	}
	for in, want := range cases {
		if got := in.Escalate(); got != want {
			t.Errorf("%s.Escalate() = %s, want %s", in, got, want)
		}
	}
}

func TestMostRestrictive(t *testing.T) {
	if got := MostRestrictive(); got != LabelPublic {
		t.Errorf("empty = %s, want PUBLIC", got)
	}
	if got := MostRestrictive(LabelGeneralizable, LabelReject, LabelRedact); got != LabelReject {
		t.Errorf("got %s, want REJECT", got)
	}
}

func TestLabelJSON(t *testing.T) {
	v := SanitizationVerdict{FragmentID: "f000", Label: LabelRedact}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var back SanitizationVerdict
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Label != LabelRedact {
		t.Errorf("label = %s, want REDACT", back.Label)
	}
}

func TestParseLabel_Unknown(t *testing.T) {
	l, err := ParseLabel("secret")
	if err == nil {
		t.Fatal("expected error")
	}
	if l != LabelReject {
		t.Errorf("unknown label should fall back to REJECT, got %s", l)
	}
}
