// Package qdrant mirrors the in-memory index onto a Qdrant collection for
// corpora too large for an exact scan. Records keep their caller-assigned
// ids in the payload; the point id is a deterministic UUID derived from the
// record id, so re-upserting a record overwrites its point.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Record is a single vector to mirror into Qdrant.
type Record struct {
	ID      string
	Vector  []float64
	Payload map[string]any
}

// Hit is a single similarity search result.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of all Qdrant operations.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients wires a Store onto existing clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Store {
	return &Store{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the cosine-distance collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	return nil
}

// DropCollection deletes the collection. Retraining starts from one.
func (s *Store) DropCollection(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant: drop collection %s: %w", s.collection, err)
	}
	return nil
}

// PointID derives the deterministic point UUID for a record id.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String()
}

// Upsert mirrors records into the collection. The record id travels in the
// payload under record_id since the point id is a derived UUID.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := make(map[string]*pb.Value, len(r.Payload)+1)
		for k, val := range r.Payload {
			payload[k] = toValue(val)
		}
		payload["record_id"] = toValue(r.ID)

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: narrow(r.Vector)},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Delete removes the point for a record id.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("record_id", recordID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete record %s: %w", recordID, err)
	}
	return nil
}

// Search performs k-NN similarity search with an optional score threshold
// and optional keyword equality filters over payload fields.
func (s *Store) Search(ctx context.Context, vector []float64, topK int, threshold *float64, filters map[string]string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         narrow(vector),
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if threshold != nil {
		t := float32(*threshold)
		req.ScoreThreshold = &t
	}
	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, val := range filters {
			must = append(must, fieldMatch(k, val))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := Hit{
			Score:   float64(r.GetScore()),
			Payload: make(map[string]any, len(r.GetPayload())),
		}
		for k, val := range r.GetPayload() {
			if k == "record_id" {
				h.ID = val.GetStringValue()
				continue
			}
			h.Payload[k] = fromValue(val)
		}
		if h.ID == "" {
			h.ID = r.GetId().GetUuid()
		}
		hits[i] = h
	}
	return hits, nil
}

func narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toValue(val any) *pb.Value {
	switch tv := val.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

func fromValue(val *pb.Value) any {
	switch k := val.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
