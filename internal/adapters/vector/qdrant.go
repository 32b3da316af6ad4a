// Package vector provides the Qdrant-backed similarity retriever and the
// upsert path used by the index builder.
package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rescam/phishguard/internal/core"
)

// Index is the sole owner of all Qdrant operations. The distance function is
// fixed at collection creation (cosine) and never chosen per query.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *zap.Logger
}

// New creates an Index connected to Qdrant at the given gRPC address.
func New(addr, collection string, logger *zap.Logger) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vector: dial qdrant %s: %w", addr, err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		logger:      logger,
	}, nil
}

// NewWithClients creates an Index from pre-built clients. Used in tests.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient, collection string, logger *zap.Logger) *Index {
	return &Index{points: points, collections: collections, collection: collection, logger: logger}
}

// Close closes the underlying gRPC connection.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// EnsureCollection creates the collection with the given dimensionality if
// it does not exist yet.
func (x *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vector: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector: create collection %s: %w", x.collection, err)
	}
	x.logger.Info("created vector collection",
		zap.String("collection", x.collection),
		zap.Int("dimensions", dims))
	return nil
}

// Record is one email embedding to store in the index.
type Record struct {
	ID        string
	Embedding []float32
	Sender    string
	Subject   string
	Label     string
}

// pointID maps a record id onto a Qdrant point id. Qdrant only accepts
// unsigned integers or UUIDs, so arbitrary string ids are hashed into a
// deterministic name-based UUID and the original kept in the payload.
func pointID(id string) *pb.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
	}
	if _, err := uuid.Parse(id); err == nil {
		return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: derived.String()}}
}

// Upsert stores embedding records into the collection.
func (x *Index) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: pointID(r.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"source_id": {Kind: &pb.Value_StringValue{StringValue: r.ID}},
				"sender":    {Kind: &pb.Value_StringValue{StringValue: r.Sender}},
				"subject":   {Kind: &pb.Value_StringValue{StringValue: r.Subject}},
				"label":     {Kind: &pb.Value_StringValue{StringValue: r.Label}},
			},
		}
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vector: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search performs k-NN similarity search and parses the hits into the
// retrieval result consumed by the classifier, most similar first.
func (x *Index) Search(ctx context.Context, vector []float32, topK int) (*core.RetrievalResult, error) {
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", err)
	}

	neighbors := make([]core.Neighbor, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		n := core.Neighbor{
			// Qdrant reports cosine similarity; the prompt context reports
			// distance, lower meaning more similar.
			Distance: 1 - r.GetScore(),
		}
		switch id := r.GetId().GetPointIdOptions().(type) {
		case *pb.PointId_Num:
			n.ID = strconv.FormatUint(id.Num, 10)
		case *pb.PointId_Uuid:
			n.ID = id.Uuid
		}
		for k, val := range r.GetPayload() {
			switch k {
			case "source_id":
				n.ID = val.GetStringValue()
			case "sender":
				n.Sender = val.GetStringValue()
			case "subject":
				n.Subject = val.GetStringValue()
			case "label":
				n.Label = val.GetStringValue()
			}
		}
		neighbors[i] = n
	}
	return &core.RetrievalResult{Neighbors: neighbors}, nil
}
