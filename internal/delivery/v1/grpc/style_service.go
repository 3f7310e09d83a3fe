package grpc

import (
	"context"

	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const StyleServiceName = "thrift.v1.StyleService"

// StyleServiceServer — рекомендации и лайки для внутренних сервисов. Сообщения передаются как google.protobuf.Struct
// с теми же полями, что и в HTTP API.
type StyleServiceServer interface {
	GetRecommendations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	LikeListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var StyleServiceDesc = grpc.ServiceDesc{
	ServiceName: StyleServiceName,
	HandlerType: (*StyleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRecommendations", Handler: unaryHandler("GetRecommendations", StyleServiceServer.GetRecommendations)},
		{MethodName: "LikeListing", Handler: unaryHandler("LikeListing", StyleServiceServer.LikeListing)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "thrift/v1/style.proto",
}

func unaryHandler(
	method string,
	call func(StyleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	fullMethod := "/" + StyleServiceName + "/" + method

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StyleServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StyleServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type StyleService struct {
	listingUC usecase.ListingUC
	recsUC    usecase.RecommendationUC
	logger    logger.Logger
}

func NewStyleService(listingUC usecase.ListingUC, recsUC usecase.RecommendationUC, logger logger.Logger) *StyleService {
	return &StyleService{listingUC: listingUC, recsUC: recsUC, logger: logger}
}

func (g *StyleService) GetRecommendations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.GetRecommendations"

	limit, err := intField(req, "limit")
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}

	res, err := g.recsUC.Recommend(ctx, &usecase.RecommendReq{UserID: stringField(req, "user_id"), Limit: limit})
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := structpb.NewStruct(recommendationsToMap(res))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}
	return out, nil
}

func (g *StyleService) LikeListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.LikeListing"

	res, err := g.listingUC.LikeListing(ctx, &usecase.ListingActionReq{
		UserID:  stringField(req, "user_id"),
		Listing: toListingInput(structField(req, "listing")),
	})
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return structpb.NewStruct(map[string]interface{}{
		"listing_id": res.ListingID,
		"liked":      res.Active,
		"changed":    res.Changed,
	})
}

func toListingInput(s *structpb.Struct) usecase.ListingInput {
	return usecase.ListingInput{
		ID:             stringField(s, "id"),
		Title:          stringField(s, "title"),
		Condition:      stringField(s, "condition"),
		Price:          stringField(s, "price"),
		Currency:       stringField(s, "currency"),
		Image:          stringField(s, "image"),
		Platform:       stringField(s, "platform"),
		URL:            stringField(s, "url"),
		SellerUsername: stringField(s, "seller_username"),
		SellerFeedback: stringField(s, "seller_feedback"),
	}
}

func recommendationsToMap(res *usecase.RecommendationsRes) map[string]interface{} {
	results := make([]interface{}, 0, len(res.Results))
	for _, r := range res.Results {
		item := map[string]interface{}{
			"listing_id": r.ListingID,
			"similarity": r.Similarity,
		}
		if r.Listing != nil {
			item["listing"] = listingToMap(r.Listing)
		}
		results = append(results, item)
	}

	return map[string]interface{}{
		"results": results,
		"source":  string(res.Source),
	}
}

func listingToMap(l *usecase.ListingInfo) map[string]interface{} {
	m := map[string]interface{}{
		"id":        l.ID,
		"title":     l.Title,
		"condition": l.Condition,
		"currency":  l.Currency,
		"image":     l.Image,
		"platform":  l.Platform,
		"url":       l.URL,
		"saves":     l.Saves,
	}
	if l.Price.Valid {
		m["price"] = l.Price.Decimal.String()
	}
	return m
}
