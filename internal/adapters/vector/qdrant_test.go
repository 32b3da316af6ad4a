package vector

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// fakePointsClient overrides the calls the Index makes; anything else panics
// through the embedded nil interface.
type fakePointsClient struct {
	pb.PointsClient
	searchResp *pb.SearchResponse
	searchReq  *pb.SearchPoints
	upsertReq  *pb.UpsertPoints
}

func (f *fakePointsClient) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.searchReq = in
	return f.searchResp, nil
}

func (f *fakePointsClient) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.upsertReq = in
	return &pb.PointsOperationResponse{}, nil
}

type fakeCollectionsClient struct {
	pb.CollectionsClient
	existing  []string
	createReq *pb.CreateCollection
}

func (f *fakeCollectionsClient) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for _, name := range f.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeCollectionsClient) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.createReq = in
	return &pb.CollectionOperationResponse{}, nil
}

func scoredPoint(id string, score float32, payload map[string]string) *pb.ScoredPoint {
	p := &pb.ScoredPoint{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
		Score:   score,
		Payload: map[string]*pb.Value{},
	}
	for k, v := range payload {
		p.Payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	return p
}

func TestSearchParsesNeighbors(t *testing.T) {
	points := &fakePointsClient{searchResp: &pb.SearchResponse{
		Result: []*pb.ScoredPoint{
			scoredPoint("n1", 0.95, map[string]string{
				"sender":  "a@evil.example",
				"subject": "Verify now",
				"label":   "PHISHING",
			}),
			scoredPoint("n2", 0.60, nil),
		},
	}}

	idx := NewWithClients(points, &fakeCollectionsClient{}, "phishing-emails", zap.NewNop())
	result, err := idx.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if points.searchReq.GetCollectionName() != "phishing-emails" {
		t.Errorf("collection = %q", points.searchReq.GetCollectionName())
	}
	if points.searchReq.GetLimit() != 5 {
		t.Errorf("limit = %d", points.searchReq.GetLimit())
	}

	if len(result.Neighbors) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(result.Neighbors))
	}
	n := result.Neighbors[0]
	if n.ID != "n1" || n.Sender != "a@evil.example" || n.Label != "PHISHING" {
		t.Errorf("neighbor = %+v", n)
	}
	// Similarity 0.95 becomes distance 0.05.
	if n.Distance < 0.049 || n.Distance > 0.051 {
		t.Errorf("distance = %v", n.Distance)
	}
}

func TestUpsertBuildsPoints(t *testing.T) {
	points := &fakePointsClient{}
	idx := NewWithClients(points, &fakeCollectionsClient{}, "phishing-emails", zap.NewNop())

	err := idx.Upsert(context.Background(), []Record{
		{ID: "r1", Embedding: []float32{0.1}, Sender: "a@b.c", Subject: "s", Label: "LEGITIMATE"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	req := points.upsertReq
	if req == nil || len(req.GetPoints()) != 1 {
		t.Fatalf("upsert request = %+v", req)
	}
	p := req.GetPoints()[0]
	if p.GetPayload()["source_id"].GetStringValue() != "r1" {
		t.Errorf("source_id = %+v", p.GetPayload()["source_id"])
	}
	if p.GetPayload()["label"].GetStringValue() != "LEGITIMATE" {
		t.Errorf("payload = %+v", p.GetPayload())
	}
	if req.GetWait() != true {
		t.Error("upsert should wait for durability")
	}
}

func TestPointIDAcceptsOnlyQdrantShapes(t *testing.T) {
	// Numeric ids go into the integer oneof.
	if got := pointID("42").GetNum(); got != 42 {
		t.Errorf("numeric id = %d", got)
	}

	// Well-formed UUIDs pass through untouched.
	const u = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	if got := pointID(u).GetUuid(); got != u {
		t.Errorf("uuid id = %q", got)
	}

	// Anything else becomes a deterministic UUID, never the raw string.
	a := pointID("dataset-row-7").GetUuid()
	b := pointID("dataset-row-7").GetUuid()
	if a == "" || a == "dataset-row-7" {
		t.Errorf("derived id = %q", a)
	}
	if a != b {
		t.Errorf("derived id not stable: %q vs %q", a, b)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("derived id %q is not a UUID: %v", a, err)
	}
}

func TestSearchPrefersSourceIDOverPointID(t *testing.T) {
	withSource := scoredPoint("00000000-0000-0000-0000-000000000001", 0.9, map[string]string{
		"source_id": "dataset-row-7",
	})
	numeric := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 42}},
		Score: 0.5,
	}
	points := &fakePointsClient{searchResp: &pb.SearchResponse{
		Result: []*pb.ScoredPoint{withSource, numeric},
	}}

	idx := NewWithClients(points, &fakeCollectionsClient{}, "phishing-emails", zap.NewNop())
	result, err := idx.Search(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := result.Neighbors[0].ID; got != "dataset-row-7" {
		t.Errorf("neighbor id = %q, want original record id", got)
	}
	if got := result.Neighbors[1].ID; got != "42" {
		t.Errorf("numeric neighbor id = %q", got)
	}
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	points := &fakePointsClient{}
	idx := NewWithClients(points, &fakeCollectionsClient{}, "phishing-emails", zap.NewNop())

	if err := idx.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if points.upsertReq != nil {
		t.Error("empty batch should not reach the client")
	}
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	collections := &fakeCollectionsClient{existing: []string{"other"}}
	idx := NewWithClients(&fakePointsClient{}, collections, "phishing-emails", zap.NewNop())

	if err := idx.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if collections.createReq == nil {
		t.Fatal("expected a create call")
	}
	params := collections.createReq.GetVectorsConfig().GetParams()
	if params.GetSize() != 384 {
		t.Errorf("size = %d", params.GetSize())
	}
	if params.GetDistance() != pb.Distance_Cosine {
		t.Errorf("distance = %v", params.GetDistance())
	}
}

func TestEnsureCollectionSkipsWhenPresent(t *testing.T) {
	collections := &fakeCollectionsClient{existing: []string{"phishing-emails"}}
	idx := NewWithClients(&fakePointsClient{}, collections, "phishing-emails", zap.NewNop())

	if err := idx.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if collections.createReq != nil {
		t.Error("existing collection should not be recreated")
	}
}
