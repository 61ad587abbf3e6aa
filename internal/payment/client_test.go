package payment

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient はテスト用サーバーに向けたClientを生成する。
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), slog.Default(), "sk_test_dummy")
	client.endpoint = server.URL
	return client, server
}

// TestClient_CreateCheckoutSession_SendsAmountAndMetadata はIntent作成リクエストに
// 金額（最小単位）とmetadataの講座IDが含まれることを検証する。
func TestClient_CreateCheckoutSession_SendsAmountAndMetadata(t *testing.T) {
	var gotForm map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_dummy" {
			t.Errorf("Authorization = %q, want bearer key", auth)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotForm = map[string]string{
			"unit_amount": r.PostForm.Get("line_items[0][price_data][unit_amount]"),
			"currency":    r.PostForm.Get("line_items[0][price_data][currency]"),
			"name":        r.PostForm.Get("line_items[0][price_data][product_data][name]"),
			"course_id":   r.PostForm.Get("metadata[course_id]"),
			"mode":        r.PostForm.Get("mode"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","url":"https://pay.example.com/cs_test_1","status":"open","payment_status":"unpaid"}`))
	})

	session, err := client.CreateCheckoutSession(context.Background(), CreateParams{
		Description:      "Mastering Python for Web",
		AmountMinorUnits: 2900,
		Currency:         "usd",
		SuccessURL:       "http://localhost:8080/payment/success?session_id={CHECKOUT_SESSION_ID}&course_id=course-7",
		CancelURL:        "http://localhost:8080/payment/cancel?course_id=course-7",
		CourseID:         "course-7",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}

	if session.ID != "cs_test_1" {
		t.Errorf("session.ID = %q, want %q", session.ID, "cs_test_1")
	}
	if session.URL != "https://pay.example.com/cs_test_1" {
		t.Errorf("session.URL = %q, want hosted payment URL", session.URL)
	}
	if gotForm["unit_amount"] != "2900" {
		t.Errorf("unit_amount = %q, want %q", gotForm["unit_amount"], "2900")
	}
	if gotForm["currency"] != "usd" {
		t.Errorf("currency = %q, want %q", gotForm["currency"], "usd")
	}
	if gotForm["name"] != "Mastering Python for Web" {
		t.Errorf("product name = %q, want course title", gotForm["name"])
	}
	if gotForm["course_id"] != "course-7" {
		t.Errorf("metadata course_id = %q, want %q", gotForm["course_id"], "course-7")
	}
	if gotForm["mode"] != "payment" {
		t.Errorf("mode = %q, want %q", gotForm["mode"], "payment")
	}
}

// TestClient_CreateCheckoutSession_GatewayError_ReturnsError はゲートウェイの
// エラーステータスがエラーとして返ることを検証する。
func TestClient_CreateCheckoutSession_GatewayError_ReturnsError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateCheckoutSession(context.Background(), CreateParams{
		Description:      "Test Course",
		AmountMinorUnits: 1000,
		Currency:         "usd",
	})
	if err == nil {
		t.Fatal("expected error for gateway failure, got nil")
	}
}

// TestClient_GetSessionStatus_MapsPaymentStatus はゲートウェイのステータスが
// paid/pending/unpaidへ正しくマッピングされることを検証する。
func TestClient_GetSessionStatus_MapsPaymentStatus(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantStatus    Status
		wantCourseID  string
	}{
		{
			name:         "paid",
			body:         `{"id":"cs_1","status":"complete","payment_status":"paid","metadata":{"course_id":"course-7"}}`,
			wantStatus:   StatusPaid,
			wantCourseID: "course-7",
		},
		{
			name:       "open session is pending",
			body:       `{"id":"cs_2","status":"open","payment_status":"unpaid"}`,
			wantStatus: StatusPending,
		},
		{
			name:       "expired session is unpaid",
			body:       `{"id":"cs_3","status":"expired","payment_status":"unpaid"}`,
			wantStatus: StatusUnpaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("method = %s, want GET", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})

			status, err := client.GetSessionStatus(context.Background(), "cs_x")
			if err != nil {
				t.Fatalf("GetSessionStatus returned error: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if status.CourseID != tt.wantCourseID {
				t.Errorf("CourseID = %q, want %q", status.CourseID, tt.wantCourseID)
			}
		})
	}
}

// TestClient_GetSessionStatus_EmptyID_ReturnsError は空のセッションIDが
// リクエストなしでエラーになることを検証する。
func TestClient_GetSessionStatus_EmptyID_ReturnsError(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.GetSessionStatus(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty session ID, got nil")
	}
	if called {
		t.Error("expected no HTTP request for empty session ID")
	}
}
