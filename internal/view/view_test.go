package view

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

func fullForm() url.Values {
	form := url.Values{}
	form.Set("pdb_id", "1CRN")
	form.Set("id", "view:000001")
	form.Set("order", "2")
	form.Set("i_atom", "42")
	form.Set("res_id", "A:15")
	form.Set("labels", `[{"i_atom": 42, "text": "catalytic"}];`)
	form.Set("distances", "[];")
	form.Set("selected", "[1, 2, 3]")
	form.Set("text", "Active site residues")
	form.Set("show_sidechain", "true")
	form.Set("show_hydrogen", "false")
	form.Set("show_ca_trace", "false")
	form.Set("show_trace", "true")
	form.Set("show_water", "false")
	form.Set("show_ribbon", "true")
	form.Set("show_backbone", "false")
	form.Set("show_all_atom", "false")
	form.Set("show_ligands", "true")
	form.Set("z_front", "-1.5")
	form.Set("z_back", "30")
	form.Set("zoom", "25.5")
	form.Set("camera_pos_x", "1.25")
	form.Set("camera_pos_y", "-2.5")
	form.Set("camera_pos_z", "3.75")
	form.Set("camera_up_x", "0")
	form.Set("camera_up_y", "1")
	form.Set("camera_up_z", "0")
	form.Set("camera_in_x", "0.1")
	form.Set("camera_in_y", "0.2")
	form.Set("camera_in_z", "0.3")
	return form
}

func TestParseForm(t *testing.T) {
	v, err := ParseForm(fullForm())
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}

	if v.PDBID != "1CRN" || v.ID != "view:000001" {
		t.Errorf("identity = %s/%s, want 1CRN/view:000001", v.PDBID, v.ID)
	}
	if v.Order != 2 || v.IAtom != 42 {
		t.Errorf("order/i_atom = %d/%d, want 2/42", v.Order, v.IAtom)
	}
	if !v.ShowSidechain || v.ShowHydrogen || !v.ShowTrace || !v.ShowRibbon || !v.ShowLigands {
		t.Errorf("toggles parsed wrong: %+v", v)
	}
	if v.ZFront != -1.5 || v.ZBack != 30 || v.Zoom != 25.5 {
		t.Errorf("depth/zoom = %v/%v/%v", v.ZFront, v.ZBack, v.Zoom)
	}
	if v.CameraPosY != -2.5 || v.CameraUpY != 1 || v.CameraInZ != 0.3 {
		t.Errorf("camera parsed wrong: %+v", v)
	}
	if v.Selected != "[1, 2, 3]" || v.Text != "Active site residues" {
		t.Errorf("text fields parsed wrong: %+v", v)
	}
}

func TestParseFormBoolConvention(t *testing.T) {
	form := fullForm()
	// The client sends the literal string "true"; case is forgiven, any
	// other value means false.
	form.Set("show_water", "True")
	form.Set("show_ribbon", "1")
	form.Set("show_ligands", "yes")

	v, err := ParseForm(form)
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}
	if !v.ShowWater {
		t.Error(`show_water "True" parsed as false`)
	}
	if v.ShowRibbon {
		t.Error(`show_ribbon "1" parsed as true`)
	}
	if v.ShowLigands {
		t.Error(`show_ligands "yes" parsed as true`)
	}
}

func TestParseFormRequiresIdentity(t *testing.T) {
	form := fullForm()
	form.Del("pdb_id")
	if _, err := ParseForm(form); !errors.Is(err, pkgerrors.ErrInvalidInput) {
		t.Errorf("missing pdb_id: error = %v, want ErrInvalidInput", err)
	}

	form = fullForm()
	form.Del("id")
	if _, err := ParseForm(form); !errors.Is(err, pkgerrors.ErrInvalidInput) {
		t.Errorf("missing id: error = %v, want ErrInvalidInput", err)
	}
}

func TestParseFormRejectsBadNumerics(t *testing.T) {
	cases := []struct {
		field string
		value string
	}{
		{"order", "second"},
		{"i_atom", "12.5"},
		{"zoom", "huge"},
		{"camera_up_y", ""},
	}
	for _, tc := range cases {
		form := fullForm()
		form.Set(tc.field, tc.value)
		if _, err := ParseForm(form); !errors.Is(err, pkgerrors.ErrInvalidInput) {
			t.Errorf("%s=%q: error = %v, want ErrInvalidInput", tc.field, tc.value, err)
		}
	}
}

func TestForCaller(t *testing.T) {
	owned := View{Creator: "boscoh", Modifier: "boscoh"}

	got := owned.ForCaller("boscoh")
	if got.Lock {
		t.Error("creator sees their own view locked")
	}

	got = owned.ForCaller("mark")
	if !got.Lock {
		t.Error("foreign view not locked")
	}

	// Views with no recorded creator belong to everyone.
	anonymous := View{}
	got = anonymous.ForCaller("boscoh")
	if got.Lock {
		t.Error("creatorless view locked")
	}
	if got.Creator != "public" || got.Modifier != "public" {
		t.Errorf("identities = %s/%s, want public/public", got.Creator, got.Modifier)
	}
}

func TestMarshalTimeFormat(t *testing.T) {
	v := View{
		PDBID: "1CRN",
		ID:    "view:000001",
		Time:  time.Date(2009, time.July, 24, 13, 5, 0, 0, time.UTC),
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"time":"24/07/2009"`) {
		t.Errorf("time not day/month/year: %s", s)
	}
	if !strings.Contains(s, `"pdb_id":"1CRN"`) || !strings.Contains(s, `"show_sidechain":false`) {
		t.Errorf("wire keys missing: %s", s)
	}
}
