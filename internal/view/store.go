package view

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sjando/jolecule/internal/user"
	pkgerrors "github.com/sjando/jolecule/pkg/errors"
	"github.com/sjando/jolecule/pkg/postgres"
)

// listLimit caps how many views one structure page loads.
const listLimit = 1000

const upsertView = `
INSERT INTO views (
    pdb_id, id, view_order, created_at, creator, modifier,
    show_sidechain, show_hydrogen, show_ca_trace, show_trace, show_water,
    show_ribbon, show_backbone, show_all_atom, show_ligands,
    res_id, i_atom, labels, distances, selected, text,
    z_front, z_back, zoom,
    camera_pos_x, camera_pos_y, camera_pos_z,
    camera_up_x, camera_up_y, camera_up_z,
    camera_in_x, camera_in_y, camera_in_z
) VALUES (
    $1, $2, $3, NOW(), $4, $5,
    $6, $7, $8, $9, $10,
    $11, $12, $13, $14,
    $15, $16, $17, $18, $19, $20,
    $21, $22, $23,
    $24, $25, $26,
    $27, $28, $29,
    $30, $31, $32
)
ON CONFLICT (pdb_id, id) DO UPDATE SET
    view_order = EXCLUDED.view_order,
    modifier = EXCLUDED.modifier,
    show_sidechain = EXCLUDED.show_sidechain,
    show_hydrogen = EXCLUDED.show_hydrogen,
    show_ca_trace = EXCLUDED.show_ca_trace,
    show_trace = EXCLUDED.show_trace,
    show_water = EXCLUDED.show_water,
    show_ribbon = EXCLUDED.show_ribbon,
    show_backbone = EXCLUDED.show_backbone,
    show_all_atom = EXCLUDED.show_all_atom,
    show_ligands = EXCLUDED.show_ligands,
    res_id = EXCLUDED.res_id,
    i_atom = EXCLUDED.i_atom,
    labels = EXCLUDED.labels,
    distances = EXCLUDED.distances,
    selected = EXCLUDED.selected,
    text = EXCLUDED.text,
    z_front = EXCLUDED.z_front,
    z_back = EXCLUDED.z_back,
    zoom = EXCLUDED.zoom,
    camera_pos_x = EXCLUDED.camera_pos_x,
    camera_pos_y = EXCLUDED.camera_pos_y,
    camera_pos_z = EXCLUDED.camera_pos_z,
    camera_up_x = EXCLUDED.camera_up_x,
    camera_up_y = EXCLUDED.camera_up_y,
    camera_up_z = EXCLUDED.camera_up_z,
    camera_in_x = EXCLUDED.camera_in_x,
    camera_in_y = EXCLUDED.camera_in_y,
    camera_in_z = EXCLUDED.camera_in_z`

const selectViews = `
SELECT pdb_id, id, view_order, created_at, creator, modifier,
       show_sidechain, show_hydrogen, show_ca_trace, show_trace, show_water,
       show_ribbon, show_backbone, show_all_atom, show_ligands,
       res_id, i_atom, labels, distances, selected, text,
       z_front, z_back, zoom,
       camera_pos_x, camera_pos_y, camera_pos_z,
       camera_up_x, camera_up_y, camera_up_z,
       camera_in_x, camera_in_y, camera_in_z
FROM views
WHERE pdb_id = $1
ORDER BY view_order ASC, id ASC
LIMIT $2`

const deleteView = `DELETE FROM views WHERE pdb_id = $1 AND id = $2`

// backfillView fills columns that predate their introduction, mirroring
// what List reports for them.
const backfillView = `
UPDATE views
SET labels = COALESCE(labels, '[];'),
    distances = COALESCE(distances, '[];'),
    created_at = COALESCE(created_at, NOW())
WHERE pdb_id = $1 AND id = $2`

// Store persists views in PostgreSQL, keyed by (pdb_id, id).
//
// It requires a `views` table. The nullable columns hold rows imported from
// deployments that predate them; List backfills those on read.
//
//	CREATE TABLE views (
//	    pdb_id         TEXT NOT NULL,
//	    id             TEXT NOT NULL,
//	    view_order     INT NOT NULL DEFAULT 0,
//	    created_at     TIMESTAMPTZ,
//	    creator        TEXT,
//	    modifier       TEXT,
//	    show_sidechain BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_hydrogen  BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_ca_trace  BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_trace     BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_water     BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_ribbon    BOOLEAN NOT NULL DEFAULT TRUE,
//	    show_backbone  BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_all_atom  BOOLEAN NOT NULL DEFAULT FALSE,
//	    show_ligands   BOOLEAN NOT NULL DEFAULT TRUE,
//	    res_id         TEXT NOT NULL DEFAULT '',
//	    i_atom         INT,
//	    labels         TEXT,
//	    distances      TEXT,
//	    selected       TEXT,
//	    text           TEXT NOT NULL DEFAULT '',
//	    z_front        DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    z_back         DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    zoom           DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_pos_x   DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_pos_y   DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_pos_z   DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_up_x    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_up_y    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_up_z    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_in_x    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_in_y    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    camera_in_z    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    PRIMARY KEY (pdb_id, id)
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "view-store"),
	}
}

// Save inserts the view or, when (pdb_id, id) exists, updates everything
// except the creation audit fields.
func (s *Store) Save(ctx context.Context, v *View) error {
	_, err := s.db.DB.ExecContext(ctx, upsertView,
		v.PDBID, v.ID, v.Order, identity(v.Creator), identity(v.Modifier),
		v.ShowSidechain, v.ShowHydrogen, v.ShowCATrace, v.ShowTrace, v.ShowWater,
		v.ShowRibbon, v.ShowBackbone, v.ShowAllAtom, v.ShowLigands,
		v.ResID, v.IAtom, v.Labels, v.Distances, v.Selected, v.Text,
		v.ZFront, v.ZBack, v.Zoom,
		v.CameraPosX, v.CameraPosY, v.CameraPosZ,
		v.CameraUpX, v.CameraUpY, v.CameraUpZ,
		v.CameraInX, v.CameraInY, v.CameraInZ,
	)
	if err != nil {
		return fmt.Errorf("saving view %s/%s: %w", v.PDBID, v.ID, err)
	}
	s.logger.Debug("view saved", "pdb_id", v.PDBID, "view_id", v.ID)
	return nil
}

// Delete removes a view. A missing view is reported as ErrViewNotFound.
func (s *Store) Delete(ctx context.Context, pdbID, viewID string) error {
	res, err := s.db.DB.ExecContext(ctx, deleteView, pdbID, viewID)
	if err != nil {
		return fmt.Errorf("deleting view %s/%s: %w", pdbID, viewID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting view %s/%s: %w", pdbID, viewID, err)
	}
	if n == 0 {
		return pkgerrors.Newf(pkgerrors.ErrViewNotFound, http.StatusNotFound,
			"view %s/%s not found", pdbID, viewID)
	}
	return nil
}

// List returns up to listLimit views for a structure. Rows predating the
// labels, distances, or timestamp columns are read with defaults and the
// defaults are written back.
func (s *Store) List(ctx context.Context, pdbID string) ([]View, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectViews, pdbID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("listing views for %s: %w", pdbID, err)
	}
	defer rows.Close()

	var views []View
	var backfill []string
	for rows.Next() {
		var v View
		var created sql.NullTime
		var creator, modifier, labels, distances, selected sql.NullString
		var iAtom sql.NullInt64
		err := rows.Scan(
			&v.PDBID, &v.ID, &v.Order, &created, &creator, &modifier,
			&v.ShowSidechain, &v.ShowHydrogen, &v.ShowCATrace, &v.ShowTrace, &v.ShowWater,
			&v.ShowRibbon, &v.ShowBackbone, &v.ShowAllAtom, &v.ShowLigands,
			&v.ResID, &iAtom, &labels, &distances, &selected, &v.Text,
			&v.ZFront, &v.ZBack, &v.Zoom,
			&v.CameraPosX, &v.CameraPosY, &v.CameraPosZ,
			&v.CameraUpX, &v.CameraUpY, &v.CameraUpZ,
			&v.CameraInX, &v.CameraInY, &v.CameraInZ,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning view row: %w", err)
		}

		needsBackfill := false
		if created.Valid {
			v.Time = created.Time
		} else {
			v.Time = time.Now()
			needsBackfill = true
		}
		if labels.Valid {
			v.Labels = labels.String
		} else {
			v.Labels = "[];"
			needsBackfill = true
		}
		if distances.Valid {
			v.Distances = distances.String
		} else {
			v.Distances = "[];"
			needsBackfill = true
		}
		v.Creator = creator.String
		v.Modifier = modifier.String
		v.Selected = selected.String
		if iAtom.Valid {
			v.IAtom = int(iAtom.Int64)
		} else {
			v.IAtom = -1
		}

		if needsBackfill {
			backfill = append(backfill, v.ID)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating view rows: %w", err)
	}

	for _, id := range backfill {
		if _, err := s.db.DB.ExecContext(ctx, backfillView, pdbID, id); err != nil {
			s.logger.Warn("backfilling view defaults failed",
				"pdb_id", pdbID,
				"view_id", id,
				"error", err,
			)
		}
	}
	return views, nil
}

// identity maps the anonymous nickname to NULL so views saved without a
// logged-in user are never locked against anyone.
func identity(nickname string) sql.NullString {
	return sql.NullString{String: nickname, Valid: nickname != "" && nickname != user.Anonymous}
}
