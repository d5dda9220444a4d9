package assets

// AssetResolver tries a chain of loaders in order. A loader reporting the
// asset as missing passes the lookup to the next one; any other error stops
// the chain.
type AssetResolver struct {
	chain []AssetLoader
}

// NewAssetResolver returns a resolver over the embedded assets, preceded by
// the directory customDir when it is set.
func NewAssetResolver(customDir string) (*AssetResolver, error) {
	r := &AssetResolver{}
	if customDir != "" {
		fsLoader, err := NewFilesystemLoader(customDir)
		if err != nil {
			return nil, err
		}
		r.chain = append(r.chain, fsLoader)
	}
	r.chain = append(r.chain, NewEmbeddedLoader())
	return r, nil
}

func (r *AssetResolver) LoadStyle(name string) (string, error) {
	return r.resolve(func(l AssetLoader) (string, error) { return l.LoadStyle(name) })
}

func (r *AssetResolver) LoadTemplate(name string) (string, error) {
	return r.resolve(func(l AssetLoader) (string, error) { return l.LoadTemplate(name) })
}

func (r *AssetResolver) resolve(load func(AssetLoader) (string, error)) (content string, err error) {
	for _, l := range r.chain {
		content, err = load(l)
		if err == nil || !IsNotFound(err) {
			return content, err
		}
	}
	return "", err
}

// HasCustomLoader reports whether a custom directory precedes the embedded assets.
func (r *AssetResolver) HasCustomLoader() bool {
	return len(r.chain) > 1
}

var _ AssetLoader = (*AssetResolver)(nil)
