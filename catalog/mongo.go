package catalog

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection layout constants.
const (
	// DatabaseName is the database holding the catalog.
	DatabaseName = "dsdrive"
	// CollectionName is the node collection.
	CollectionName = "tree"
)

// Mongo is a Store backed by a MongoDB collection with an index on the
// parent field.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// check interface
var _ Store = (*Mongo)(nil)

// NewMongo connects to uri and prepares the tree collection.
func NewMongo(ctx context.Context, uri string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongodb")
	}
	coll := client.Database(DatabaseName).Collection(CollectionName)
	// children are discovered by index scan on parent
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create parent index")
	}
	return &Mongo{client: client, coll: coll}, nil
}

// Close disconnects from the server.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Collection exposes the underlying collection for the backup CLI.
func (m *Mongo) Collection() *mongo.Collection {
	return m.coll
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (*Node, error) {
	var node Node
	err := m.coll.FindOne(ctx, filter).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "catalog lookup failed")
	}
	return &node, nil
}

// EnsureRoot returns the root node, inserting it first if absent.
func (m *Mongo) EnsureRoot(ctx context.Context) (*Node, error) {
	root, err := m.findOne(ctx, bson.M{"parent": "", "name": ""})
	if err != nil {
		return nil, err
	}
	if root != nil {
		return root, nil
	}
	root = newFolderNode("", "")
	id, err := m.Insert(ctx, root)
	if err != nil {
		return nil, err
	}
	root.ID = id
	return root, nil
}

// Get returns the node with the given id.
func (m *Mongo) Get(ctx context.Context, id string) (*Node, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

// Child returns the node named name directly under parentID.
func (m *Mongo) Child(ctx context.Context, parentID, name string) (*Node, error) {
	return m.findOne(ctx, bson.M{"parent": parentID, "name": name})
}

// Children returns all nodes directly under parentID.
func (m *Mongo) Children(ctx context.Context, parentID string) ([]*Node, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"parent": parentID})
	if err != nil {
		return nil, errors.Wrap(err, "catalog list failed")
	}
	var out []*Node
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "catalog list decode failed")
	}
	// the root's parent is the empty string, keep it out of listings
	filtered := out[:0]
	for _, node := range out {
		if !node.IsRoot() {
			filtered = append(filtered, node)
		}
	}
	return filtered, nil
}

// Insert stores a new node and returns its assigned id.
func (m *Mongo) Insert(ctx context.Context, node *Node) (string, error) {
	if node.ID == "" {
		node.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.coll.InsertOne(ctx, node); err != nil {
		return "", errors.Wrap(err, "catalog insert failed")
	}
	return node.ID, nil
}

// Update replaces the stored node with the same id.
func (m *Mongo) Update(ctx context.Context, node *Node) error {
	res, err := m.coll.ReplaceOne(ctx, bson.M{"_id": node.ID}, node)
	if err != nil {
		return errors.Wrap(err, "catalog update failed")
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("node %q not found", node.ID)
	}
	return nil
}

// Delete removes the node with the given id.
func (m *Mongo) Delete(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "catalog delete failed")
	}
	return nil
}

// Clear removes every node except the root.
func (m *Mongo) Clear(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"parent": bson.M{"$ne": ""}},
		bson.M{"name": bson.M{"$ne": ""}},
	}})
	if err != nil {
		return errors.Wrap(err, "catalog clear failed")
	}
	return nil
}
