package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/hatsunemiku3939/underwriter/types"
)

// SecretsClient is the part of the Secrets Manager API used to read database credentials.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Credentials locate the Mongo database described by a secret.
type Credentials struct {
	URI      string
	Database string
}

// CredentialsFromSecret reads a secret holding Host, Port, User, PWD and DB and turns it into a
// connection URI.
func CredentialsFromSecret(ctx context.Context, client SecretsClient, name string) (Credentials, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		return Credentials{}, fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("secret %s has no string value: %w", name, ErrSecret)
	}

	var fields types.Record
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err != nil {
		return Credentials{}, fmt.Errorf("decode secret %s: %w", name, err)
	}
	host, err := fields.Text("Host")
	if err != nil {
		return Credentials{}, fmt.Errorf("secret %s: %w: %w", name, ErrSecret, err)
	}
	port, err := fields.Int("Port")
	if err != nil {
		return Credentials{}, fmt.Errorf("secret %s: %w: %w", name, ErrSecret, err)
	}

	u := url.URL{
		Scheme:   "mongodb",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/",
		RawQuery: "retryWrites=false",
	}
	if user := fields.String("User"); user != "" {
		u.User = url.UserPassword(user, fields.String("PWD"))
	}
	return Credentials{URI: u.String(), Database: fields.String("DB")}, nil
}
