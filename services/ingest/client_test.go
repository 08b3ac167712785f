package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	var received Record
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/processos/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(received)
	}))
	defer server.Close()

	record := Record{
		NumeroProcesso: "10012345620238260100",
		NomeReu:        "JOÃO DA SILVA",
		CpfCnpjReu:     "52998224725",
		ValorCausa:     "15.000,00",
	}
	err := NewClient(server.URL).Create(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, record, received)
}

func TestCreateDuplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Processo já cadastrado"})
	}))
	defer server.Close()

	err := NewClient(server.URL).Create(context.Background(), Record{NumeroProcesso: "123"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateOtherRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewClient(server.URL).Create(context.Background(), Record{NumeroProcesso: "123"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)
}

func TestList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/processos/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Stored{
			{ID: 1, NumeroProcesso: "111", NomeReu: "A"},
			{ID: 2, NumeroProcesso: "222", NomeReu: "B"},
		})
	}))
	defer server.Close()

	stored, err := NewClient(server.URL).List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "222", stored[1].NumeroProcesso)
}
