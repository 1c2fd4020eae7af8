package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	deleteReq  *pb.DeletePoints
	deleteErr  error
	countResp  *pb.CountResponse
	countErr   error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return m.upsertResp, m.upsertErr
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleteReq = in
	return nil, m.deleteErr
}

func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	createReq *pb.CreateCollection
	createErr error
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReq = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

func samplePost() domain.Post {
	return domain.Post{
		Platform:  "x",
		Keyword:   "metro",
		Text:      "Loving the new metro line #metro @transit https://metro.example",
		Author:    "@rider_joe",
		PostedAt:  "2024-03-01T10:30:00.000Z",
		ScrapedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CleanText: "loving the new metro line metro",
		Sentiment: sentiment.LabelPositive,
		Scores:    sentiment.Scores{Positive: 0.7, Negative: 0.05, Neutral: 0.25, Compound: 0.82},
		Language:  "en",
		Phase:     domain.PhaseDuring,
		Hashtags:  []string{"metro"},
		Mentions:  []string{"transit"},
		Links:     []string{"https://metro.example"},
	}
}

// --- Tests ---

func TestPointIDDeterministic(t *testing.T) {
	p := samplePost()

	if PointID(p) != PointID(p) {
		t.Fatal("point ID must be stable for the same post")
	}

	other := p
	other.Author = "@someone_else"
	if PointID(p) == PointID(other) {
		t.Fatal("different posts must not collide")
	}

	// Enrichment must not move the point: re-ingesting overwrites.
	enriched := p
	enriched.Sentiment = sentiment.LabelNegative
	enriched.Hashtags = nil
	if PointID(p) != PointID(enriched) {
		t.Fatal("enrichment fields must not change the point ID")
	}
}

func TestUpsertPostBuildsPoint(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	a := NewWithClients(pts, &mockCollections{}, "posts")
	p := samplePost()

	if err := a.UpsertPost(context.Background(), p); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}

	req := pts.upsertReq
	if req == nil || req.CollectionName != "posts" {
		t.Fatalf("bad upsert request: %+v", req)
	}
	if len(req.Points) != 1 {
		t.Fatalf("got %d points, want 1", len(req.Points))
	}

	point := req.Points[0]
	if point.GetId().GetUuid() != PointID(p) {
		t.Fatalf("point ID %q, want %q", point.GetId().GetUuid(), PointID(p))
	}

	vec := point.GetVectors().GetVector().GetData()
	if len(vec) != ProfileDims {
		t.Fatalf("vector has %d dims, want %d", len(vec), ProfileDims)
	}
	if vec[0] != 0.7 || vec[3] != float32(0.82) {
		t.Fatalf("vector %v does not carry the sentiment profile", vec)
	}

	payload := point.GetPayload()
	if payload["uid"].GetStringValue() != p.UID() {
		t.Fatalf("payload uid %q", payload["uid"].GetStringValue())
	}
	if payload["compound"].GetDoubleValue() != 0.82 {
		t.Fatalf("payload compound %v", payload["compound"].GetDoubleValue())
	}
	tags := payload["hashtags"].GetListValue().GetValues()
	if len(tags) != 1 || tags[0].GetStringValue() != "metro" {
		t.Fatalf("payload hashtags %v", tags)
	}
}

func TestUpsertPostError(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("unavailable")}
	a := NewWithClients(pts, &mockCollections{}, "posts")

	if err := a.UpsertPost(context.Background(), samplePost()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureCollectionExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "posts"}},
		},
	}
	a := NewWithClients(&mockPoints{}, cols, "posts")

	if err := a.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if cols.createReq != nil {
		t.Fatal("existing collection must not be recreated")
	}
}

func TestEnsureCollectionCreates(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{}},
	}
	a := NewWithClients(&mockPoints{}, cols, "posts")

	if err := a.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if cols.createReq == nil {
		t.Fatal("missing collection must be created")
	}
	params := cols.createReq.GetVectorsConfig().GetParams()
	if params.GetSize() != ProfileDims {
		t.Fatalf("collection dims %d, want %d", params.GetSize(), ProfileDims)
	}
	if params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("distance %v, want cosine", params.GetDistance())
	}
}

func TestEnsureCollectionListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("unavailable")}
	a := NewWithClients(&mockPoints{}, cols, "posts")

	if err := a.EnsureCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeletePostFiltersByUID(t *testing.T) {
	pts := &mockPoints{}
	a := NewWithClients(pts, &mockCollections{}, "posts")
	p := samplePost()

	if err := a.DeletePost(context.Background(), p.UID()); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	filter := pts.deleteReq.GetPoints().GetFilter()
	if filter == nil || len(filter.Must) != 1 {
		t.Fatalf("bad delete filter: %+v", filter)
	}
	cond := filter.Must[0].GetField()
	if cond.Key != "uid" || cond.Match.GetKeyword() != p.UID() {
		t.Fatalf("delete condition %v", cond)
	}
}

func TestCountPoints(t *testing.T) {
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 42}}}
	a := NewWithClients(pts, &mockCollections{}, "posts")

	n, err := a.CountPoints(context.Background())
	if err != nil {
		t.Fatalf("CountPoints: %v", err)
	}
	if n != 42 {
		t.Fatalf("count %d, want 42", n)
	}
}

func TestCountPointsError(t *testing.T) {
	pts := &mockPoints{countErr: errors.New("unavailable")}
	a := NewWithClients(pts, &mockCollections{}, "posts")

	if _, err := a.CountPoints(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCloseNilConn(t *testing.T) {
	a := NewWithClients(nil, nil, "posts")
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPayloadValueKinds(t *testing.T) {
	if valueFrom("s").GetStringValue() != "s" {
		t.Fatal("string kind")
	}
	if valueFrom(7).GetIntegerValue() != 7 {
		t.Fatal("int kind")
	}
	if valueFrom(int64(9)).GetIntegerValue() != 9 {
		t.Fatal("int64 kind")
	}
	if valueFrom(0.5).GetDoubleValue() != 0.5 {
		t.Fatal("float kind")
	}
	if !valueFrom(true).GetBoolValue() {
		t.Fatal("bool kind")
	}
	list := valueFrom([]string{"a", "b"}).GetListValue().GetValues()
	if len(list) != 2 || list[1].GetStringValue() != "b" {
		t.Fatal("list kind")
	}
	// Unknown types fall back to their printed form.
	if valueFrom(time.Duration(time.Second)).GetStringValue() != "1s" {
		t.Fatal("fallback kind")
	}
}
