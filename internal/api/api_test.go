package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insectos/insectos-go/internal/conf"
	"github.com/insectos/insectos-go/internal/datastore"
	"github.com/insectos/insectos-go/internal/errors"
	"github.com/insectos/insectos-go/internal/inaturalist"
)

// mockDataStore implements datastore.Interface with overridable functions.
type mockDataStore struct {
	createObservation func(ctx context.Context, record map[string]any) (map[string]any, error)
	getObservation    func(ctx context.Context, id string) (map[string]any, error)
	listByUser        func(ctx context.Context, userID string) ([]map[string]any, error)
	updateObservation func(ctx context.Context, id string, fields map[string]any) (map[string]any, error)
	deleteObservation func(ctx context.Context, id string) error
	addPhoto          func(ctx context.Context, observationID string, photo map[string]any) (map[string]any, error)
	getPhotos         func(ctx context.Context, observationID string) ([]map[string]any, error)
	updatePhoto       func(ctx context.Context, photoID string, fields map[string]any) (map[string]any, error)
	deletePhoto       func(ctx context.Context, photoID string) error
	getCatalog        func(ctx context.Context, name string) ([]map[string]any, error)
}

var _ datastore.Interface = (*mockDataStore)(nil)

func (m *mockDataStore) Open() error  { return nil }
func (m *mockDataStore) Close() error { return nil }

func (m *mockDataStore) CreateObservation(ctx context.Context, record map[string]any) (map[string]any, error) {
	return m.createObservation(ctx, record)
}

func (m *mockDataStore) GetObservation(ctx context.Context, id string) (map[string]any, error) {
	return m.getObservation(ctx, id)
}

func (m *mockDataStore) ListObservationsByUser(ctx context.Context, userID string) ([]map[string]any, error) {
	return m.listByUser(ctx, userID)
}

func (m *mockDataStore) UpdateObservation(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	return m.updateObservation(ctx, id, fields)
}

func (m *mockDataStore) DeleteObservation(ctx context.Context, id string) error {
	return m.deleteObservation(ctx, id)
}

func (m *mockDataStore) AddPhoto(ctx context.Context, observationID string, photo map[string]any) (map[string]any, error) {
	return m.addPhoto(ctx, observationID, photo)
}

func (m *mockDataStore) GetObservationPhotos(ctx context.Context, observationID string) ([]map[string]any, error) {
	return m.getPhotos(ctx, observationID)
}

func (m *mockDataStore) UpdatePhoto(ctx context.Context, photoID string, fields map[string]any) (map[string]any, error) {
	return m.updatePhoto(ctx, photoID, fields)
}

func (m *mockDataStore) DeletePhoto(ctx context.Context, photoID string) error {
	return m.deletePhoto(ctx, photoID)
}

func (m *mockDataStore) GetCatalog(ctx context.Context, name string) ([]map[string]any, error) {
	return m.getCatalog(ctx, name)
}

// newTestController wires a controller against a stub upstream server and the
// given mock datastore.
func newTestController(t *testing.T, ds datastore.Interface, upstream http.Handler) *Controller {
	t.Helper()

	var baseURL string
	if upstream != nil {
		server := httptest.NewServer(upstream)
		t.Cleanup(server.Close)
		baseURL = server.URL
	} else {
		baseURL = "http://127.0.0.1:0"
	}

	inat := inaturalist.NewClient(inaturalist.Config{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}, nil)

	e := echo.New()
	controller, err := New(e, ds, &conf.Settings{}, inat, nil)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)
	return controller
}

func doRequest(c *Controller, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSearchInsects_MissingQuery(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/insects/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchInsects_PassesThroughUpstreamEnvelope(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_results": 2, "page": 1, "per_page": 20, "results": [{"id": 1}, {"id": 2}]}`))
	})
	c := newTestController(t, &mockDataStore{}, upstream)

	rec := doRequest(c, http.MethodGet, "/api/v1/insects/search?q=monarca", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["total_results"])
}

func TestGetInsect_InvalidID(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/insects/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNearbyInsects_MissingCoordinates(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/insects/nearby?lat=8.9", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateObservation_MissingUserID(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodPost, "/api/v1/observations", `{"scientific_name": "Danaus plexippus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateObservation_MapsWireShapeBothWays(t *testing.T) {
	var received map[string]any
	ds := &mockDataStore{
		createObservation: func(ctx context.Context, record map[string]any) (map[string]any, error) {
			received = record
			stored := make(map[string]any, len(record)+1)
			for k, v := range record {
				stored[k] = v
			}
			stored["id"] = "obs-1"
			return stored, nil
		},
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodPost, "/api/v1/observations",
		`{"user_id": "u-1", "scientific_name": "Danaus plexippus", "latitude": 8.9824, "longitude": -79.5199}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Storage shape reached the repository.
	assert.Equal(t, "Danaus plexippus", received["nombre_cientifico"])
	assert.Equal(t, "POINT(-79.5199 8.9824)", received["ubicacion"])

	// Wire shape came back out.
	body := decodeBody(t, rec)
	assert.Equal(t, "obs-1", body["id"])
	assert.Equal(t, "Danaus plexippus", body["scientific_name"])
	assert.InDelta(t, 8.9824, body["latitude"].(float64), 1e-9)
	assert.NotContains(t, body, "ubicacion")
}

func TestCreateObservation_NonNumericCoordinates(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodPost, "/api/v1/observations",
		`{"user_id": "u-1", "latitude": "north", "longitude": -79.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetObservation_NotFoundMapsTo404(t *testing.T) {
	ds := &mockDataStore{
		getObservation: func(ctx context.Context, id string) (map[string]any, error) {
			return nil, errors.Newf("observation %s not found", id).
				Category(errors.CategoryNotFound).
				Build()
		},
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/observations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUserObservations(t *testing.T) {
	ds := &mockDataStore{
		listByUser: func(ctx context.Context, userID string) ([]map[string]any, error) {
			return []map[string]any{
				{"id": "obs-1", "user_id": userID, "nombre_cientifico": "Atta cephalotes"},
			}, nil
		},
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/observations/user/u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Atta cephalotes", body[0]["scientific_name"])
}

func TestDeleteObservation(t *testing.T) {
	ds := &mockDataStore{
		deleteObservation: func(ctx context.Context, id string) error { return nil },
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodDelete, "/api/v1/observations/obs-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAddPhoto_RequiresObservationAndURL(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodPost, "/api/v1/photos", `{"photo_url": "https://img/1.jpg"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(c, http.MethodPost, "/api/v1/photos", `{"observation_id": "obs-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddPhoto_MapsShape(t *testing.T) {
	ds := &mockDataStore{
		addPhoto: func(ctx context.Context, observationID string, photo map[string]any) (map[string]any, error) {
			assert.Equal(t, "https://img/1.jpg", photo["url_foto"])
			return map[string]any{
				"id":             "photo-1",
				"observacion_id": observationID,
				"url_foto":       "https://img/1.jpg",
				"orden":          1,
			}, nil
		},
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodPost, "/api/v1/photos",
		`{"observation_id": "obs-1", "photo_url": "https://img/1.jpg"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "obs-1", body["observation_id"])
	assert.Equal(t, "https://img/1.jpg", body["photo_url"])
	assert.EqualValues(t, 1, body["order"])
}

func TestGetCatalog_CachesRows(t *testing.T) {
	calls := 0
	ds := &mockDataStore{
		getCatalog: func(ctx context.Context, name string) ([]map[string]any, error) {
			calls++
			return []map[string]any{{"id": 1, "name": "Soleado"}}, nil
		},
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/catalogs/conditions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Soleado", rows[0]["name"])

	rec = doRequest(c, http.MethodGet, "/api/v1/catalogs/conditions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, calls)
}

func TestGetCatalog_UnknownName(t *testing.T) {
	ds := &mockDataStore{
		getCatalog: func(ctx context.Context, name string) ([]map[string]any, error) {
			return nil, errors.Newf("unknown catalog %q", name).
				Category(errors.CategoryValidation).
				Build()
		},
	}
	c := newTestController(t, ds, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/catalogs/colors", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheStatsAndClear(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": []}`))
	})
	c := newTestController(t, &mockDataStore{}, upstream)

	rec := doRequest(c, http.MethodGet, "/api/v1/insects/search?q=monarca", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total_items"])

	rec = doRequest(c, http.MethodDelete, "/api/v1/cache/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/cache/stats", "")
	body = decodeBody(t, rec)
	assert.EqualValues(t, 0, body["total_items"])
}

func TestHealth(t *testing.T) {
	c := newTestController(t, &mockDataStore{}, nil)

	rec := doRequest(c, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
}

func TestBearerTokenMiddleware(t *testing.T) {
	var gotToken string
	c := newTestController(t, &mockDataStore{}, nil)
	c.Group.GET("/token-probe", func(ctx echo.Context) error {
		gotToken, _ = ctx.Get("bearer_token").(string)
		return ctx.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/token-probe", http.NoBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer secret-token")
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret-token", gotToken)
}
