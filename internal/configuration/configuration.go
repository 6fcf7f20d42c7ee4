// Package configuration builds the immutable mapping configuration: it
// discovers the domain, constructs the type and relation graph, binds the
// persistence model, validates the result and freezes it. A frozen
// configuration is safe for concurrent reads.
package configuration

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/rdbms"
	"github.com/conduit-lang/mapping/internal/reflector"
	"github.com/conduit-lang/mapping/internal/validation"
)

// MappingConfiguration is the frozen metadata graph of one domain
type MappingConfiguration struct {
	id        string
	builtAt   time.Time
	domain    *discovery.Domain
	types     *reflector.TypeDefinitionCollection
	relations *reflector.RelationDefinitionCollection
	resolver  *reflector.PropertyResolver
	providers *rdbms.ProviderRegistry
}

type buildOptions struct {
	logger         *zap.Logger
	loader         mapping.PersistenceModelLoader
	providers      *rdbms.ProviderRegistry
	validator      *validation.Validator
	validation     validation.Options
	factoryOptions []reflector.FactoryOption
}

// Option configures Build
type Option func(*buildOptions)

// WithLogger sets the logger used while building
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPersistenceModelLoader replaces the RDBMS persistence model loader
func WithPersistenceModelLoader(loader mapping.PersistenceModelLoader) Option {
	return func(o *buildOptions) {
		o.loader = loader
	}
}

// WithStorageProviders sets the storage providers of the RDBMS loader
func WithStorageProviders(providers *rdbms.ProviderRegistry) Option {
	return func(o *buildOptions) {
		o.providers = providers
	}
}

// WithValidator replaces the standard validator
func WithValidator(v *validation.Validator) Option {
	return func(o *buildOptions) {
		o.validator = v
	}
}

// WithValidationOptions configures the standard validator
func WithValidationOptions(opts validation.Options) Option {
	return func(o *buildOptions) {
		o.validation = opts
	}
}

// WithFactoryOptions passes options to the mapping object factory
func WithFactoryOptions(opts ...reflector.FactoryOption) Option {
	return func(o *buildOptions) {
		o.factoryOptions = append(o.factoryOptions, opts...)
	}
}

// Build runs the whole pipeline over the domain supplied by service. Either
// the complete graph is built, validated and frozen, or an error is
// returned and nothing is published.
func Build(service discovery.Service, opts ...Option) (*MappingConfiguration, error) {
	o := &buildOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	start := time.Now()

	if service == nil {
		return nil, fmt.Errorf("discovery service cannot be nil")
	}
	domain, err := service.Discover()
	if err != nil {
		logger.Error("type discovery failed", zap.Error(err))
		return nil, fmt.Errorf("failed to discover types: %w", err)
	}
	candidates := domain.DiscoverCandidateTypes()
	logger.Debug("types discovered", zap.Int("candidates", len(candidates)))

	phase := time.Now()
	factory := reflector.NewMappingObjectFactory(domain, o.factoryOptions...)
	types, err := reflector.NewTypeDefinitionCollectionFactory(factory).CreateTypeDefinitionCollection(candidates)
	if err != nil {
		logger.Error("failed to build type definitions", zap.Error(err))
		return nil, err
	}
	logger.Debug("type definitions built",
		zap.Int("types", types.Len()),
		zap.Duration("elapsed", time.Since(phase)))

	phase = time.Now()
	relations, err := reflector.NewRelationDefinitionCollectionFactory(domain).CreateRelationDefinitionCollection(types)
	if err != nil {
		logger.Error("failed to build relation definitions", zap.Error(err))
		return nil, err
	}
	logger.Debug("relation definitions built",
		zap.Int("relations", relations.Len()),
		zap.Duration("elapsed", time.Since(phase)))

	providers := o.providers
	if providers == nil {
		providers = rdbms.NewDefaultProviderRegistry()
	}
	loader := o.loader
	if loader == nil {
		loader = rdbms.NewPersistenceModelLoader(domain, providers, rdbms.WithLoaderLogger(logger))
	}

	phase = time.Now()
	if err := applyPersistenceModel(loader, types); err != nil {
		logger.Error("failed to apply persistence model", zap.Error(err))
		return nil, err
	}
	logger.Debug("persistence model applied", zap.Duration("elapsed", time.Since(phase)))

	phase = time.Now()
	validator := o.validator
	if validator == nil {
		validationOpts := o.validation
		if validationOpts.Logger == nil {
			validationOpts.Logger = logger
		}
		validator = validation.NewStandardValidator(domain, validationOpts)
	}
	if err := validate(loader, validator, types, relations); err != nil {
		logger.Error("mapping validation failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("mapping validated", zap.Duration("elapsed", time.Since(phase)))

	if err := freeze(types); err != nil {
		logger.Error("failed to freeze mapping configuration", zap.Error(err))
		return nil, err
	}

	cfg := &MappingConfiguration{
		id:        uuid.NewString(),
		builtAt:   time.Now(),
		domain:    domain,
		types:     types,
		relations: relations,
		resolver:  reflector.NewPropertyResolver(domain, factory.MixinConfiguration()),
		providers: providers,
	}
	logger.Info("mapping configuration built",
		zap.String("id", cfg.id),
		zap.Int("types", types.Len()),
		zap.Int("relations", relations.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return cfg, nil
}

// BuildFromDomain builds a configuration for an in-memory domain
func BuildFromDomain(domain *discovery.Domain, opts ...Option) (*MappingConfiguration, error) {
	if domain == nil {
		return nil, fmt.Errorf("domain cannot be nil")
	}
	return Build(domain, opts...)
}

// BuildFromFiles builds a configuration from YAML descriptor files
func BuildFromFiles(paths []string, opts ...Option) (*MappingConfiguration, error) {
	return Build(discovery.NewFileService(paths...), opts...)
}

// applyPersistenceModel runs the loader once per inheritance root and once
// per interface, then checks that every entity and every persistent
// property has been bound
func applyPersistenceModel(loader mapping.PersistenceModelLoader, types *reflector.TypeDefinitionCollection) error {
	for _, root := range types.InheritanceRoots() {
		if err := loader.ApplyPersistenceModelToHierarchy(root); err != nil {
			return err
		}
	}
	for _, iface := range types.Interfaces() {
		if err := loader.ApplyPersistenceModelToInterface(iface); err != nil {
			return err
		}
	}

	for _, td := range types.All() {
		if td.StorageEntityDefinition() == nil {
			return mapping.NewStateError(td.TypeName(),
				"the persistence model loader did not assign a storage entity to type '%s'", td.TypeName())
		}
		own, err := td.MyPropertyDefinitions()
		if err != nil {
			return err
		}
		for _, p := range own.Items() {
			if p.IsPersistent() && p.StoragePropertyDefinition() == nil {
				return mapping.NewStateError(td.TypeName(),
					"the persistence model loader did not assign a storage property to property '%s' of type '%s'",
					p.PropertyName(), td.TypeName())
			}
		}
	}
	return nil
}

// validate runs the persistence validators once per inheritance root and
// then the rule lists over the whole graph. All failures are reported
// together.
func validate(loader mapping.PersistenceModelLoader, validator *validation.Validator,
	types *reflector.TypeDefinitionCollection, relations *reflector.RelationDefinitionCollection) error {
	errs := validation.NewErrors()
	for _, root := range types.InheritanceRoots() {
		errs.Add(validation.RunPersistenceValidator(loader.CreatePersistenceMappingValidator(root), root)...)
	}

	if err := validator.Validate(types.All(), relations.All()); err != nil {
		var ruleErrs *validation.Errors
		if !errors.As(err, &ruleErrs) {
			return err
		}
		errs.Add(ruleErrs.Failures...)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func freeze(types *reflector.TypeDefinitionCollection) error {
	for _, td := range types.All() {
		if err := td.MarkValidated(); err != nil {
			return err
		}
	}
	for _, td := range types.All() {
		if err := td.SetReadOnly(); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the unique identifier of this build
func (c *MappingConfiguration) ID() string {
	return c.id
}

// BuiltAt returns when the configuration was frozen
func (c *MappingConfiguration) BuiltAt() time.Time {
	return c.builtAt
}

// Domain returns the discovered domain
func (c *MappingConfiguration) Domain() *discovery.Domain {
	return c.domain
}

// StorageProviders returns the storage providers of the configuration
func (c *MappingConfiguration) StorageProviders() *rdbms.ProviderRegistry {
	return c.providers
}

// GetTypeDefinition returns the definition of a mapped type
func (c *MappingConfiguration) GetTypeDefinition(typeName string) (mapping.TypeDefinition, error) {
	return c.GetTypeDefinitionOr(typeName, func(name string) error {
		return mapping.NewNotFoundError("type", name)
	})
}

// GetTypeDefinitionOr returns the definition of a mapped type, or the error
// created by notFound
func (c *MappingConfiguration) GetTypeDefinitionOr(typeName string, notFound func(typeName string) error) (mapping.TypeDefinition, error) {
	if td, ok := c.types.Get(typeName); ok {
		return td, nil
	}
	return nil, notFound(typeName)
}

// GetClassDefinition returns a class by its class ID
func (c *MappingConfiguration) GetClassDefinition(classID string) (*mapping.ClassDefinition, error) {
	if class, ok := c.types.GetClass(classID); ok {
		return class, nil
	}
	return nil, mapping.NewNotFoundError("class", classID)
}

// ContainsTypeDefinition reports whether a type is mapped
func (c *MappingConfiguration) ContainsTypeDefinition(typeName string) bool {
	_, ok := c.types.Get(typeName)
	return ok
}

// ContainsClassDefinition reports whether a class ID is mapped
func (c *MappingConfiguration) ContainsClassDefinition(classID string) bool {
	_, ok := c.types.GetClass(classID)
	return ok
}

// GetTypeDefinitions returns every type in discovery order
func (c *MappingConfiguration) GetTypeDefinitions() []mapping.TypeDefinition {
	return c.types.All()
}

// GetClassDefinitions returns every class in discovery order
func (c *MappingConfiguration) GetClassDefinitions() []*mapping.ClassDefinition {
	return c.types.Classes()
}

// GetInterfaceDefinitions returns every interface in discovery order
func (c *MappingConfiguration) GetInterfaceDefinitions() []*mapping.InterfaceDefinition {
	return c.types.Interfaces()
}

// GetInheritanceRoots returns the classes without a base class
func (c *MappingConfiguration) GetInheritanceRoots() []*mapping.ClassDefinition {
	return c.types.InheritanceRoots()
}

// GetRelationDefinitions returns every relation
func (c *MappingConfiguration) GetRelationDefinitions() []*mapping.RelationDefinition {
	return c.relations.All()
}

// GetRelationDefinition returns a relation by its ID
func (c *MappingConfiguration) GetRelationDefinition(id string) (*mapping.RelationDefinition, error) {
	if rd, ok := c.relations.Get(id); ok {
		return rd, nil
	}
	return nil, mapping.NewNotFoundError("relation", id)
}

// ResolveProperty resolves a property declared on declaringType, possibly
// an interface, to its definition in the composition graph of typeName
func (c *MappingConfiguration) ResolveProperty(typeName, declaringType, shortName string) (*mapping.PropertyDefinition, error) {
	td, err := c.GetTypeDefinition(typeName)
	if err != nil {
		return nil, err
	}
	return c.resolver.ResolveProperty(td, declaringType, shortName)
}

// ResolveRelationEndPoint resolves a relation property declared on
// declaringType to its end point in the composition graph of typeName
func (c *MappingConfiguration) ResolveRelationEndPoint(typeName, declaringType, shortName string) (mapping.EndPoint, error) {
	td, err := c.GetTypeDefinition(typeName)
	if err != nil {
		return nil, err
	}
	return c.resolver.ResolveRelationEndPoint(td, declaringType, shortName)
}

// StorageEntities returns the RDBMS entities of the configuration in
// dependency order
func (c *MappingConfiguration) StorageEntities() []rdbms.Entity {
	return rdbms.CollectEntities(c.types.All())
}
