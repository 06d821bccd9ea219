package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// Repository stores index entries as points of a Qdrant collection. Chunk
// ids are not valid point ids, so points are keyed by a UUID derived from the
// chunk id and the original id travels in the payload.
type Repository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	cfg         config.IndexConfig
	dimension   int
}

// New dials Qdrant's gRPC port. The connection is established lazily.
func New(cfg config.IndexConfig, dimension int) (*Repository, error) {
	creds := insecure.NewCredentials()
	if cfg.Qdrant.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	addr := fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Repository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		cfg:         cfg,
		dimension:   dimension,
	}, nil
}

func (r *Repository) withAuth(ctx context.Context) context.Context {
	if r.cfg.APIKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", r.cfg.APIKey)
}

// Ensure creates the collection (cosine, configured dimension) if needed and
// waits until Qdrant reports it green.
func (r *Repository) Ensure(ctx context.Context) error {
	name := r.cfg.Name
	exists, err := r.collections.CollectionExists(r.withAuth(ctx), &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}

	if !exists.GetResult().GetExists() {
		log.Info().Str("collection", name).Int("dimension", r.dimension).Msg("Creating qdrant collection")
		_, err := r.collections.Create(r.withAuth(ctx), &pb.CreateCollection{
			CollectionName: name,
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(r.dimension), Distance: pb.Distance_Cosine},
			}},
		})
		if err != nil {
			return fmt.Errorf("qdrant create collection: %w", err)
		}
	}

	return helper.WaitUntil(ctx, "qdrant collection "+name, r.cfg.ReadyInterval, r.cfg.ReadyTimeout, func(ctx context.Context) (bool, error) {
		info, err := r.collections.Get(r.withAuth(ctx), &pb.GetCollectionInfoRequest{CollectionName: name})
		if err != nil {
			return false, fmt.Errorf("qdrant collection info: %w", err)
		}
		return info.GetResult().GetStatus() == pb.CollectionStatus_Green, nil
	})
}

func (r *Repository) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, rec := range records {
		payload := map[string]*pb.Value{
			models.MetaID: {Kind: &pb.Value_StringValue{StringValue: rec.ID}},
		}
		for k, v := range rec.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: helper.PointID(rec.ID)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Vector}}},
			Payload: payload,
		}
	}

	wait := true
	_, err := r.points.Upsert(r.withAuth(ctx), &pb.UpsertPoints{
		CollectionName: r.cfg.Name,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (r *Repository) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	resp, err := r.points.Search(r.withAuth(ctx), &pb.SearchPoints{
		CollectionName: r.cfg.Name,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	return toMatches(resp.GetResult()), nil
}

func toMatches(points []*pb.ScoredPoint) []models.Match {
	matches := make([]models.Match, len(points))
	for i, pt := range points {
		meta := make(map[string]string, len(pt.GetPayload()))
		for k, v := range pt.GetPayload() {
			meta[k] = v.GetStringValue()
		}
		id := meta[models.MetaID]
		if id == "" {
			id = pt.GetId().GetUuid()
		}
		matches[i] = models.Match{ID: id, Score: pt.GetScore(), Metadata: meta}
	}
	return matches
}

// Drop deletes the collection. Deleting a missing collection is not an error.
func (r *Repository) Drop(ctx context.Context) error {
	_, err := r.collections.Delete(r.withAuth(ctx), &pb.DeleteCollection{CollectionName: r.cfg.Name})
	if err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.conn.Close()
}
