package admin_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/respd/internal/admin"
	"github.com/luma/respd/storage"
)

type fakeStats struct{}

func (fakeStats) LiveConnections() int { return 3 }
func (fakeStats) MaxConnections() int  { return 1023 }

var _ = Describe("admin router", func() {
	var store *storage.InmemoryStore

	BeforeEach(func() {
		store = storage.NewInmemoryStore()
		store.Set([]byte("foo"), []byte("bar"))
	})

	AfterEach(func() {
		store.Close()
	})

	get := func(debug bool, path string) *httptest.ResponseRecorder {
		router := admin.NewRouter(admin.Options{
			Stats: fakeStats{},
			Store: store,
			Debug: debug,
			Log:   zap.NewNop(),
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	It("answers ping", func() {
		w := get(false, "/ping")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("pong"))
	})

	It("reports connection stats", func() {
		w := get(false, "/stats")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"connections":3,"maxConnections":1023,"version":"dev"}`))
	})

	It("only serves the keyspace in debug mode", func() {
		Expect(get(false, "/debug/keyspace").Code).To(Equal(http.StatusNotFound))

		w := get(true, "/debug/keyspace")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"foo":"bar"}`))
	})
})
