package bitrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c, srv
}

func TestSearchUserSkipsInactive(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/user.search.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("FILTER[NAME_SEARCH]"); got != "Иванов Иван" {
			t.Errorf("unexpected name search %q", got)
		}
		w.Write([]byte(`{"result":[{"ID":"7","ACTIVE":false},{"ID":"12","ACTIVE":"Y"}]}`))
	})

	u, err := c.SearchUser(context.Background(), "Иванов Иван Петрович")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.ID != "12" {
		t.Fatalf("expected first active user with ID 12, got %+v", u)
	}
}

func TestSearchUserRefinesWithSecondName(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"result":[]}`))
			return
		}
		if got := r.URL.Query().Get("FILTER[SECOND_NAME]"); got != "Петрович" {
			t.Errorf("refined search missing second name, got %q", got)
		}
		w.Write([]byte(`{"result":[{"ID":"3","ACTIVE":1}]}`))
	})

	u, err := c.SearchUser(context.Background(), "Иванов Иван Петрович")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.ID != "3" {
		t.Fatalf("expected refined match, got %+v", u)
	}
	if calls != 2 {
		t.Errorf("expected 2 search calls, got %d", calls)
	}
}

func TestSearchUserRejectsSingleToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a one-token name")
	})
	if _, err := c.SearchUser(context.Background(), "Иванов"); err == nil {
		t.Error("expected error for single-token name")
	}
}

func TestCreateTaskPayload(t *testing.T) {
	var fields map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/task.item.add.json") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		fields = body["fields"]
		w.Write([]byte(`{"result":101}`))
	})

	err := c.CreateTask(context.Background(), Task{
		Title:         "Доставка Договор: A-1",
		Description:   "кирпич",
		ResponsibleID: 5,
		CreatedBy:     "12",
		Auditors:      []int{2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["TITLE"] != "Доставка Договор: A-1" {
		t.Errorf("title not sent: %v", fields["TITLE"])
	}
	if fields["ALLOW_TIME_TRACKING"] != "N" {
		t.Errorf("time tracking flag not sent: %v", fields["ALLOW_TIME_TRACKING"])
	}
	if fields["RESPONSIBLE_ID"] != float64(5) {
		t.Errorf("responsible not sent: %v", fields["RESPONSIBLE_ID"])
	}
}

func TestCreateTaskDefaultsRouting(t *testing.T) {
	var fields map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		fields = body["fields"]
		w.Write([]byte(`{"result":1}`))
	})
	if err := c.CreateTask(context.Background(), Task{Title: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["RESPONSIBLE_ID"] != float64(1) {
		t.Errorf("default responsible should be 1, got %v", fields["RESPONSIBLE_ID"])
	}
}

func TestCreateTaskReportsAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"ERROR_CORE","error_description":"Access denied"}`))
	})
	err := c.CreateTask(context.Background(), Task{Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "Access denied") {
		t.Errorf("expected API error to surface, got %v", err)
	}
}

func TestSinkPushDelivery(t *testing.T) {
	var taskFields map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/user.search.json") {
			w.Write([]byte(`{"result":[{"ID":"12","ACTIVE":"Y"}]}`))
			return
		}
		var body map[string]map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		taskFields = body["fields"]
		w.Write([]byte(`{"result":55}`))
	})

	routing := map[models.FormKind]Routing{
		models.FormKindDelivery: {ResponsibleID: 9, Auditors: []int{4}},
	}
	sink := NewSink(c, routing, "Владелец Бот", nil)

	f := models.Form{
		Kind:            models.FormKindDelivery,
		Number:          42,
		UserID:          "100",
		CreatorFullName: "Иванов Иван",
		Values:          map[string]string{"contract": "A-1", "text": "кирпич 500 шт"},
		CreatedAt:       time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	if err := sink.Push(context.Background(), f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taskFields["TITLE"] != "Доставка Договор: A-1" {
		t.Errorf("unexpected title %v", taskFields["TITLE"])
	}
	desc, _ := taskFields["DESCRIPTION"].(string)
	if !strings.HasPrefix(desc, "кирпич 500 шт") {
		t.Errorf("description should start with the form text, got %q", desc)
	}
	if !strings.Contains(desc, "Заявка #42 от 14.03.2026") || !strings.Contains(desc, "Иванов Иван") {
		t.Errorf("description trailer missing, got %q", desc)
	}
	if taskFields["CREATED_BY"] != "12" {
		t.Errorf("task should be created by the resolved Bitrix user, got %v", taskFields["CREATED_BY"])
	}
	if taskFields["RESPONSIBLE_ID"] != float64(9) {
		t.Errorf("routing responsible not applied, got %v", taskFields["RESPONSIBLE_ID"])
	}
}

func TestSinkPushAdminUsesOwnerName(t *testing.T) {
	var searched string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/user.search.json") {
			searched = r.URL.Query().Get("FILTER[NAME_SEARCH]")
			w.Write([]byte(`{"result":[{"ID":"1","ACTIVE":"Y"}]}`))
			return
		}
		w.Write([]byte(`{"result":1}`))
	})

	sink := NewSink(c, nil, "Владелец Бот", []string{"100"})
	f := models.Form{
		Kind:            models.FormKindRefund,
		Number:          1,
		UserID:          "100",
		CreatorFullName: "Иванов Иван",
		Values:          map[string]string{"contract": "B-2", "text": "поддоны"},
	}
	if err := sink.Push(context.Background(), f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searched != "Владелец Бот" {
		t.Errorf("admin form should be attributed to the owner, searched %q", searched)
	}
}

func TestSinkPushUnknownCreator(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[]}`))
	})
	sink := NewSink(c, nil, "", nil)
	f := models.Form{
		Kind:            models.FormKindPainting,
		Number:          3,
		CreatorFullName: "Неизвестный Человек",
		Values:          map[string]string{"contract": "C-3", "text": "фасад"},
	}
	err := sink.Push(context.Background(), f)
	if err == nil || !strings.Contains(err.Error(), "не найден в Битрикс24") {
		t.Errorf("expected lookup failure to surface, got %v", err)
	}
}

func TestTaskDescriptionCheckin(t *testing.T) {
	f := models.Form{
		Kind:   models.FormKindCheckin,
		Number: 7,
		Values: map[string]string{
			"contract":   "D-4",
			"date":       "15.03.2026",
			"brig_name":  "Петров Петр",
			"brig_phone": "+79991234567",
			"capacity":   "5 тонн",
		},
		CreatedAt: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	desc := TaskDescription(f, "Иванов Иван")
	for _, want := range []string{
		"Договор: D-4",
		"Дата Заезда: 15.03.2026",
		"ФИО Бригадира: Петров Петр",
		"Номер бригадира: +79991234567",
		"Грузоподъёмность: 5 тонн",
		"Заявка #7 от 14.03.2026",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q:\n%s", want, desc)
		}
	}
	if TaskTitle(f) != "Заезд Договор: D-4" {
		t.Errorf("unexpected title %q", TaskTitle(f))
	}
}
