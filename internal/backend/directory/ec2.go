package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	"dcv-session-gateway/internal/backend/domain"
)

// EC2API is the subset of the EC2 client used by EC2Directory.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2Directory treats EC2 instances as backends: the instance id is the backend id,
// the private IPv4 address is the backend address and instance tags are its tags.
type EC2Directory struct {
	client EC2API
}

// NewEC2Directory returns a directory backed by DescribeInstances.
func NewEC2Directory(client EC2API) *EC2Directory {
	return &EC2Directory{client: client}
}

// Lookup describes the instance. Unknown or malformed instance ids map to ErrNotFound.
func (d *EC2Directory) Lookup(ctx context.Context, backendID string) (*domain.Backend, error) {
	out, err := d.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{backendID},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed":
				return nil, ErrNotFound
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return nil, ErrNotFound
	}
	inst := out.Reservations[0].Instances[0]
	tags := make(map[string]string, len(inst.Tags))
	for _, t := range inst.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	id := aws.ToString(inst.InstanceId)
	if id == "" {
		id = backendID
	}
	return &domain.Backend{
		ID:      id,
		Address: aws.ToString(inst.PrivateIpAddress),
		Tags:    tags,
	}, nil
}

var _ Directory = (*EC2Directory)(nil)
