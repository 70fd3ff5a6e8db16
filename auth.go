package taskboard

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const bcryptCost = 10

// a registered account. the password is only ever stored as a bcrypt hash.
type User struct {
	Id           Id     `json:"id" bson:"_id"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"-" bson:"password"`
	Token        string `json:"token,omitempty" bson:"token,omitempty"`
}

type UserStore interface {
	// fails with `ErrConflict` if the email is already registered
	Create(ctx context.Context, user *User) (*User, error)
	FetchByEmail(ctx context.Context, email string) (*User, error)
	SetToken(ctx context.Context, userId Id, token string) error
}

type MongoUserStore struct {
	users *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{
		users: db.Collection(UsersCollection),
	}
}

func (self *MongoUserStore) Create(ctx context.Context, user *User) (*User, error) {
	existing := self.users.FindOne(ctx, bson.M{"email": user.Email})
	if existing.Err() == nil {
		return nil, ErrConflict
	}

	userCopy := *user
	userCopy.Id = NewId()
	if _, err := self.users.InsertOne(ctx, &userCopy); err != nil {
		return nil, mapMongoErr(err)
	}
	return &userCopy, nil
}

func (self *MongoUserStore) FetchByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	if err := self.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(user); err != nil {
		return nil, mapMongoErr(err)
	}
	return user, nil
}

func (self *MongoUserStore) SetToken(ctx context.Context, userId Id, token string) error {
	result, err := self.users.UpdateOne(ctx, bson.M{"_id": userId}, bson.M{"$set": bson.M{"token": token}})
	if err != nil {
		return mapMongoErr(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// registration and login glue in front of the mutation surface.
// the mutation core itself never sees credentials, only requests that
// already passed the gate.
type AuthService struct {
	users UserStore
	gate  *AuthGate
}

func NewAuthService(users UserStore, gate *AuthGate) *AuthService {
	return &AuthService{
		users: users,
		gate:  gate,
	}
}

func (self *AuthService) Register(ctx context.Context, email string, password string) (*User, string, error) {
	if email == "" || password == "" {
		return nil, "", NewValidationError("email and password are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", err
	}

	user, err := self.users.Create(ctx, &User{
		// sanitize: emails are stored lowercase
		Email:        strings.ToLower(email),
		PasswordHash: string(passwordHash),
	})
	if err != nil {
		return nil, "", err
	}

	token, err := self.gate.Issue(user.Id, user.Email)
	if err != nil {
		return nil, "", err
	}
	if err := self.users.SetToken(ctx, user.Id, token); err != nil {
		return nil, "", err
	}
	user.Token = token

	return user, token, nil
}

func (self *AuthService) Login(ctx context.Context, email string, password string) (*User, string, error) {
	if email == "" || password == "" {
		return nil, "", NewValidationError("email and password are required")
	}

	user, err := self.users.FetchByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrNotFound
	}

	token, err := self.gate.Issue(user.Id, user.Email)
	if err != nil {
		return nil, "", err
	}
	if err := self.users.SetToken(ctx, user.Id, token); err != nil {
		return nil, "", err
	}
	user.Token = token

	return user, token, nil
}

func (self *AuthService) Verify(token string) (*AuthClaims, error) {
	return self.gate.Verify(token)
}
