package server

import (
	"matchday/internal/models"
	"matchday/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// Query: category, sort (recent|popular), limit, offset
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPostLimit)

	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: viewerID(c),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search
// Query: q, category, author, from, to, sort, limit, offset
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return nil
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return nil
	}
	page := parsePagination(c, service.DefaultPostLimit)

	posts, err := s.postService.Search(c.UserContext(), service.SearchPostsInput{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Author:   c.Query("author"),
		From:     from,
		To:       to,
		Sort:     c.Query("sort"),
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: viewerID(c),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "postId")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), postID, viewerID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(post)
}

// ToggleBookmark handles POST /api/posts/:id/bookmark
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "postId")
	if err != nil {
		return nil
	}

	bookmarked, err := s.postService.ToggleBookmark(c.UserContext(), postID, viewerID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"post_id": postID, "bookmarked": bookmarked})
}

// GetRecentSearches handles GET /api/search/recent
func (s *Server) GetRecentSearches(c *fiber.Ctx) error {
	items, err := s.postService.RecentSearches(c.UserContext(), viewerID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"searches": items})
}

// ClearRecentSearches handles DELETE /api/search/recent
func (s *Server) ClearRecentSearches(c *fiber.Ctx) error {
	if err := s.postService.ClearRecentSearches(c.UserContext(), viewerID(c)); err != nil {
		return models.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
