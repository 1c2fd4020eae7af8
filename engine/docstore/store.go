// Package docstore archives enriched posts in Qdrant. Each post is one
// point: the vector is its four-dimensional sentiment profile and the
// payload carries the full document. Point IDs derive from the post UID,
// so re-ingesting a post overwrites its point instead of duplicating it.
package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

// ProfileDims is the sentiment-profile vector size: positive, negative,
// neutral, compound.
const ProfileDims = 4

// pointsAPI narrows the generated points client to what the archive
// uses, so tests can substitute scripted fakes.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI narrows the generated collections client likewise.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// PostArchive is the sole owner of all Qdrant operations.
type PostArchive struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a PostArchive connected to Qdrant at the given gRPC
// address.
func New(addr string, collection string) (*PostArchive, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("docstore: dial qdrant %s: %w", addr, err)
	}
	return &PostArchive{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds an archive on explicit clients. Tests use it to
// bypass the network.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *PostArchive {
	return &PostArchive{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection, if one was dialed.
func (a *PostArchive) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// EnsureCollection creates the posts collection if it doesn't exist.
func (a *PostArchive) EnsureCollection(ctx context.Context) error {
	list, err := a.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("docstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == a.collection {
			return nil
		}
	}

	_, err = a.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: a.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     ProfileDims,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("docstore: create collection %s: %w", a.collection, err)
	}
	return nil
}

// DeleteCollection deletes the posts collection.
func (a *PostArchive) DeleteCollection(ctx context.Context) error {
	_, err := a.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: a.collection,
	})
	if err != nil {
		return fmt.Errorf("docstore: delete collection %s: %w", a.collection, err)
	}
	return nil
}

// UpsertPost archives one enriched post. Called by engine/ingest.
func (a *PostArchive) UpsertPost(ctx context.Context, p domain.Post) error {
	point := &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(p)},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: p.Scores.Vector()},
			},
		},
		Payload: payloadFromPost(p),
	}

	wait := true
	_, err := a.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: a.collection,
		Wait:           &wait,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("docstore: upsert post %s: %w", p.UID(), err)
	}
	return nil
}

// DeletePost removes all points carrying a post UID. Used when a post
// has to be purged rather than overwritten.
func (a *PostArchive) DeletePost(ctx context.Context, uid string) error {
	wait := true
	_, err := a.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: a.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("uid", uid),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("docstore: delete post %s: %w", uid, err)
	}
	return nil
}

// CountPoints reports how many posts the archive holds. Exposed through
// the stats snapshot.
func (a *PostArchive) CountPoints(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := a.points.Count(ctx, &pb.CountPoints{
		CollectionName: a.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("docstore: count points: %w", err)
	}
	return resp.GetResult().GetCount(), nil
}

// PointID derives the stable Qdrant point ID for a post.
func PointID(p domain.Post) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.UID())).String()
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
