// Package view stores and serves per-structure annotation views: camera
// state, visibility toggles, selections, and free text saved by the viewer.
package view

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sjando/jolecule/internal/user"
	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

// View is one saved annotation state for a structure. JSON field names
// match the viewer's wire format.
type View struct {
	PDBID string `json:"pdb_id"`
	ID    string `json:"id"`
	Order int    `json:"order"`

	Time     time.Time `json:"-"`
	Creator  string    `json:"creator"`
	Modifier string    `json:"modifier"`
	Lock     bool      `json:"lock"`

	ShowSidechain bool `json:"show_sidechain"`
	ShowHydrogen  bool `json:"show_hydrogen"`
	ShowCATrace   bool `json:"show_ca_trace"`
	ShowTrace     bool `json:"show_trace"`
	ShowWater     bool `json:"show_water"`
	ShowRibbon    bool `json:"show_ribbon"`
	ShowBackbone  bool `json:"show_backbone"`
	ShowAllAtom   bool `json:"show_all_atom"`
	ShowLigands   bool `json:"show_ligands"`

	ResID     string `json:"res_id"`
	IAtom     int    `json:"i_atom"`
	Labels    string `json:"labels"`
	Distances string `json:"distances"`
	Selected  string `json:"selected"`
	Text      string `json:"text"`

	ZFront float64 `json:"z_front"`
	ZBack  float64 `json:"z_back"`
	Zoom   float64 `json:"zoom"`

	CameraPosX float64 `json:"camera_pos_x"`
	CameraPosY float64 `json:"camera_pos_y"`
	CameraPosZ float64 `json:"camera_pos_z"`
	CameraUpX  float64 `json:"camera_up_x"`
	CameraUpY  float64 `json:"camera_up_y"`
	CameraUpZ  float64 `json:"camera_up_z"`
	CameraInX  float64 `json:"camera_in_x"`
	CameraInY  float64 `json:"camera_in_y"`
	CameraInZ  float64 `json:"camera_in_z"`
}

// MarshalJSON emits time as dd/mm/yyyy, the format the viewer expects.
func (v View) MarshalJSON() ([]byte, error) {
	type alias View
	return json.Marshal(struct {
		alias
		Time string `json:"time"`
	}{alias: alias(v), Time: v.Time.Format("02/01/2006")})
}

// ForCaller finalizes a stored view for one caller: the lock flag marks
// views created by someone else, and empty identities read as public.
// Views with no recorded creator are never locked.
func (v View) ForCaller(nickname string) View {
	v.Lock = v.Creator != "" && v.Creator != nickname
	if v.Creator == "" {
		v.Creator = user.Anonymous
	}
	if v.Modifier == "" {
		v.Modifier = user.Anonymous
	}
	return v
}

// ParseForm builds a View from the save form. Visibility toggles follow the
// client convention of the literal string "true". Numeric fields keep their
// zero value when absent but must parse when posted.
func ParseForm(form url.Values) (View, error) {
	v := View{
		PDBID: form.Get("pdb_id"),
		ID:    form.Get("id"),
	}
	if v.PDBID == "" || v.ID == "" {
		return View{}, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest,
			"pdb_id and id are required")
	}

	v.ResID = form.Get("res_id")
	v.Labels = form.Get("labels")
	v.Distances = form.Get("distances")
	v.Selected = form.Get("selected")
	v.Text = form.Get("text")

	v.ShowSidechain = boolField(form, "show_sidechain")
	v.ShowHydrogen = boolField(form, "show_hydrogen")
	v.ShowCATrace = boolField(form, "show_ca_trace")
	v.ShowTrace = boolField(form, "show_trace")
	v.ShowWater = boolField(form, "show_water")
	v.ShowRibbon = boolField(form, "show_ribbon")
	v.ShowBackbone = boolField(form, "show_backbone")
	v.ShowAllAtom = boolField(form, "show_all_atom")
	v.ShowLigands = boolField(form, "show_ligands")

	if err := intField(form, "order", &v.Order); err != nil {
		return View{}, err
	}
	if err := intField(form, "i_atom", &v.IAtom); err != nil {
		return View{}, err
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"z_front", &v.ZFront},
		{"z_back", &v.ZBack},
		{"zoom", &v.Zoom},
		{"camera_pos_x", &v.CameraPosX},
		{"camera_pos_y", &v.CameraPosY},
		{"camera_pos_z", &v.CameraPosZ},
		{"camera_up_x", &v.CameraUpX},
		{"camera_up_y", &v.CameraUpY},
		{"camera_up_z", &v.CameraUpZ},
		{"camera_in_x", &v.CameraInX},
		{"camera_in_y", &v.CameraInY},
		{"camera_in_z", &v.CameraInZ},
	}
	for _, f := range floats {
		if err := floatField(form, f.name, f.dst); err != nil {
			return View{}, err
		}
	}
	return v, nil
}

func boolField(form url.Values, name string) bool {
	return strings.EqualFold(form.Get(name), "true")
}

func intField(form url.Values, name string, dst *int) error {
	if !form.Has(name) {
		return nil
	}
	n, err := strconv.Atoi(form.Get(name))
	if err != nil {
		return pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest,
			"field %s: expected integer, got %q", name, form.Get(name))
	}
	*dst = n
	return nil
}

func floatField(form url.Values, name string, dst *float64) error {
	if !form.Has(name) {
		return nil
	}
	f, err := strconv.ParseFloat(form.Get(name), 64)
	if err != nil {
		return pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest,
			"field %s: expected number, got %q", name, form.Get(name))
	}
	*dst = f
	return nil
}
