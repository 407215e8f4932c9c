package truedata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestCompanyAnnouncements(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"user":     r.URL.Query().Get("user"),
			"password": r.URL.Query().Get("password"),
			"symbol":   r.URL.Query().Get("symbol"),
			"from":     r.URL.Query().Get("from"),
			"to":       r.URL.Query().Get("to"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"Records": []map[string]any{
				{"announcement_id": "H1", "headline": "Historical one", "symbol": "XYZ"},
				{"announcement_id": "H2", "headline": "Historical two", "symbol": "XYZ"},
			},
		})
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "tduser", "tdpass")
	from := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)

	records, err := client.CompanyAnnouncements(context.Background(), "XYZ", from, to)

	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(records))
	assert.Equal(t, "H1", records[0]["announcement_id"])
	assert.Equal(t, "tduser", gotQuery["user"])
	assert.Equal(t, "tdpass", gotQuery["password"])
	assert.Equal(t, "XYZ", gotQuery["symbol"])
	assert.Equal(t, "150826 09:00:00", gotQuery["from"])
	assert.Equal(t, "220826 09:00:00", gotQuery["to"])
}

func TestCompanyAnnouncementsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "H3", "subject": "Legacy shape"},
		})
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "u", "p")
	records, err := client.CompanyAnnouncements(context.Background(), "ABC", time.Now().Add(-time.Hour), time.Now())

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(records))
	assert.Equal(t, "H3", records[0]["id"])
}

func TestCompanyAnnouncementsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "u", "p")
	_, err := client.CompanyAnnouncements(context.Background(), "ABC", time.Now().Add(-time.Hour), time.Now())

	assert.NotEqual(t, nil, err)
}

func TestAttachmentFallsBackToLegacyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/announcementfile2":
			w.WriteHeader(http.StatusNotFound)
		case "/announcementfile":
			if r.URL.Query().Get("attachment") != "ATT1" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-fake"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "u", "p")
	data, contentType, err := client.Attachment(context.Background(), "ATT1")

	assert.Equal(t, nil, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "%PDF-fake", string(data))
}

func TestAttachmentFollowsJSONPointer(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/announcementfile2":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"url": srvURL + "/files/ATT2.pdf"})
		case "/files/ATT2.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-pointer"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	client := NewRESTClient(srv.URL, "u", "p")
	data, contentType, err := client.Attachment(context.Background(), "ATT2")

	assert.Equal(t, nil, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "%PDF-pointer", string(data))
}

func TestAttachmentAllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "u", "p")
	_, _, err := client.Attachment(context.Background(), "ATT3")

	assert.NotEqual(t, nil, err)
}
