package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLabelsHandler_List(t *testing.T) {
	g := newTestGallery(t)
	recorder := httptest.NewRecorder()

	NewLabelsHandler(g.store).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var labels []LabelResponse
	parseJSONResponse(t, recorder, &labels)
	want := []LabelResponse{{Name: "dog", ImageCount: 2}, {Name: "cat", ImageCount: 1}}
	if len(labels) != len(want) {
		t.Fatalf("List() = %+v, want %+v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d = %+v, want %+v", i, labels[i], want[i])
		}
	}
}
