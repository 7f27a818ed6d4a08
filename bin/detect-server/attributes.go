package main

import (
	"grayscale-detector/internal/classify"

	"go.opentelemetry.io/otel/attribute"
)

var classificationAttributeSets = map[classify.Classification]attribute.Set{
	classify.Grayscale: attribute.NewSet(attribute.String("classification", classify.Grayscale.String())),
	classify.Color:     attribute.NewSet(attribute.String("classification", classify.Color.String())),
}

func classificationAttributes(c classify.Classification) attribute.Set {
	return classificationAttributeSets[c]
}
