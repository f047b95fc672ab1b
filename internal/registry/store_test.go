package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediswift/intake-platform/internal/conversation"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, nil), mock
}

func TestLocalPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"919876543210", "9876543210"},
		{"+919876543210", "9876543210"},
		{"9876543210", "9876543210"},
		{"14155551234", "14155551234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localPhone(tt.in))
	}
}

func TestStore_IsQueued(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	queued, err := store.IsQueued(context.Background(), "919876543210")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IsPendingIntake(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	pending, err := store.IsPendingIntake(context.Background(), "919876543210")
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestStore_RemovePendingIntake(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM intake_requests").
		WithArgs("9876543210").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RemovePendingIntake(context.Background(), "919876543210"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ResolveHospitalByCode(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name FROM hospitals").
		WithArgs("CLT01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("hosp-1", "City Care"))

	h, err := store.ResolveHospitalByCode(context.Background(), " clt01 ")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "hosp-1", h.ID)
	assert.Equal(t, "City Care", h.Name)
}

func TestStore_ResolveHospitalByCode_Unknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name FROM hospitals").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	h, err := store.ResolveHospitalByCode(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestStore_RegisterPatient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO patients").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pat-1"))

	id, err := store.RegisterPatient(context.Background(), "919876543210", "Asha", conversation.Hospital{ID: "hosp-1", Name: "City Care"})
	require.NoError(t, err)
	assert.Equal(t, "pat-1", id)
}

func TestStore_Enqueue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO queue_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Enqueue(context.Background(), "pat-1", conversation.Hospital{ID: "hosp-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ResolvePatient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name FROM patients").
		WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("pat-1", "Asha"))
	mock.ExpectQuery("SELECT summary FROM visit_summaries").
		WithArgs("pat-1").
		WillReturnRows(sqlmock.NewRows([]string{"summary"}).
			AddRow([]byte(`{"symptoms":"migraine"}`)).
			AddRow([]byte(`{"symptoms":"back pain"}`)))

	p, err := store.ResolvePatient(context.Background(), "919876543210")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Asha", p.Name)
	require.Len(t, p.MedicalHistory, 2)
	assert.JSONEq(t, `{"symptoms":"migraine"}`, string(p.MedicalHistory[0]))
}

func TestStore_ResolvePatient_Unknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name FROM patients").
		WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	p, err := store.ResolvePatient(context.Background(), "919876543210")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStore_StoreSummary(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO visit_summaries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.StoreSummary(context.Background(), "pat-1", `{"symptoms":"fever"}`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryErrorWraps(t *testing.T) {
	store, mock := newMockStore(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT EXISTS").WillReturnError(boom)

	_, err := store.IsQueued(context.Background(), "919876543210")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestStore_NilStoreFailsClosed(t *testing.T) {
	var store *Store

	queued, err := store.IsQueued(context.Background(), "919876543210")
	require.NoError(t, err)
	assert.False(t, queued)

	h, err := store.ResolveHospitalByCode(context.Background(), "CLT01")
	require.NoError(t, err)
	assert.Nil(t, h)

	_, err = store.RegisterPatient(context.Background(), "919876543210", "Asha", conversation.Hospital{})
	assert.Error(t, err)
}
